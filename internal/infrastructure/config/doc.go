// Package config loads the scene rotator's YAML configuration.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then SCENEROTATOR_* environment variables. Validate reports every problem
// at once rather than stopping at the first.
//
// Secrets (obs.password, security.jwt.secret, influxdb.token, MQTT
// credentials) are best supplied through the environment so the file can
// be checked in.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
//	client := obs.NewClient(obs.Config{URL: cfg.OBS.URL, Password: cfg.OBS.Password})
package config
