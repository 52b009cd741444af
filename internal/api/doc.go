// Package api implements the operator HTTP REST API and WebSocket server.
//
// This package provides:
//   - REST endpoints for the scene directory, switching, scene groups,
//     rotations and switch history
//   - WebSocket hub broadcasting switcher notifications (scene.changed,
//     scenes.updated, rotation.started, rotation.stopped, groups.updated,
//     obs.connection)
//   - Optional HS256 bearer auth with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Security
//
// With security.jwt.secret empty the API is open, which suits a loopback
// deployment next to OBS. With a secret set every route except health,
// metrics and the WebSocket upgrade needs a bearer token; WebSocket
// connections present a single-use ticket instead so the token never
// appears in a URL.
//
// # Graceful Degradation
//
// The server runs without OBS, MQTT or the history database. Group editing
// and rotation control keep working while OBS is away; switches fail with
// 503 until it reconnects.
package api
