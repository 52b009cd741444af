package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	OBS           OBSMetrics      `json:"obs"`
	Rotation      RotationMetrics `json:"rotation"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// OBSMetrics contains OBS connection statistics.
type OBSMetrics struct {
	State           string `json:"state"`
	MessagesTx      uint64 `json:"messages_tx"`
	MessagesRx      uint64 `json:"messages_rx"`
	DispatchDropped uint64 `json:"dispatch_dropped"`
	ErrorsTotal     uint64 `json:"errors_total"`
	ReconnectsTotal uint64 `json:"reconnects_total"`
	LastActivity    string `json:"last_activity,omitempty"`
	ScenesKnown     int    `json:"scenes_known"`
	DirectoryStale  bool   `json:"directory_stale"`
}

// RotationMetrics contains group and rotation counts.
type RotationMetrics struct {
	Groups int `json:"groups"`
	Active int `json:"active"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	Enabled         bool  `json:"enabled"`
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	obsStats := s.service.OBSStats()
	dir := s.service.Directory().Snapshot()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		OBS: OBSMetrics{
			State:           obsStats.State.String(),
			MessagesTx:      obsStats.MessagesTx,
			MessagesRx:      obsStats.MessagesRx,
			DispatchDropped: obsStats.DispatchDropped,
			ErrorsTotal:     obsStats.ErrorsTotal,
			ReconnectsTotal: obsStats.ReconnectsTotal,
			ScenesKnown:     len(dir.Scenes),
			DirectoryStale:  dir.Stale,
		},
		Rotation: RotationMetrics{
			Groups: len(s.service.Store().List()),
			Active: len(s.service.Rotations()),
		},
	}
	if !obsStats.LastActivity.IsZero() {
		metrics.OBS.LastActivity = obsStats.LastActivity.UTC().Format(time.RFC3339)
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Enabled:   true,
			Connected: s.mqtt.IsConnected(),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			Enabled:         true,
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
