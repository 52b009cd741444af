// Package obs implements a client for the OBS WebSocket v5 control protocol.
//
// The client owns one logical connection to OBS. It performs the
// challenge/response handshake, correlates requests with responses by
// requestId, and delivers events to registered listeners.
//
// # Connection lifecycle
//
//	Disconnected -> AwaitingChallenge -> AwaitingIdentified -> Ready
//
// Any transport error returns the client to Disconnected. Requests that were
// in flight fail with ErrTransport and a supervisor goroutine reconnects with
// exponential backoff until Close is called. Nothing from a previous session
// (the current scene in particular) should be trusted until the fresh scene
// list that follows every successful identify has arrived.
//
// # Dispatch
//
// The read loop never runs listener code. Events, scene lists and state
// changes are queued and delivered by a single dispatch goroutine, in receipt
// order and never concurrently with each other. When the queue is full the
// item is dropped and counted in Stats.
//
// # Scene directory
//
// Directory is the cached view of remote scene names and the current
// program scene. It is replaced wholesale on every scene list; switches
// update it optimistically and the next CurrentProgramSceneChanged event
// wins.
//
// # Usage
//
//	client := obs.NewClient(obs.Config{URL: "ws://127.0.0.1:4455", Password: pw})
//	client.SetLogger(logger.Component("obs"))
//	client.OnSceneList(func(scenes []string) { dir.Replace(scenes) })
//	client.Start()
//	defer client.Close()
package obs
