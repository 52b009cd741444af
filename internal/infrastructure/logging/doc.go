// Package logging provides structured logging for the scene rotator.
//
// It wraps log/slog so every record carries the service name and build
// version, and each subsystem can tag its records with a component name.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, or a file path
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	obsLog := logger.Component("obs")
//	obsLog.Info("connected", "url", cfg.OBS.URL)
//
// # Security
//
// Never log the OBS password, the computed authentication token, or the
// JWT secret.
package logging
