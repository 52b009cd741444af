package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the scene rotator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	OBS       OBSConfig       `yaml:"obs"`
	Rotation  RotationConfig  `yaml:"rotation"`
	Settings  SettingsConfig  `yaml:"settings"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// OBSConfig contains the connection settings for the remote control socket.
type OBSConfig struct {
	// URL is the WebSocket address of the server, e.g. "ws://127.0.0.1:4455".
	URL string `yaml:"url"`

	// Password is the shared secret used in the challenge/response handshake.
	// Leave empty when the server has authentication disabled.
	Password string `yaml:"password"`

	// ConnectTimeout bounds dial plus handshake (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// RequestTimeout bounds a correlated request waiting for its response (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// ReconnectInterval is the initial delay between reconnection attempts (seconds).
	ReconnectInterval int `yaml:"reconnect_interval"`
}

// RotationConfig contains rotation scheduler defaults.
type RotationConfig struct {
	// DefaultInterval is the interval given to newly created groups (seconds).
	DefaultInterval float64 `yaml:"default_interval"`

	// EmptyBackoff is how long a cycle waits before rechecking a group with
	// no visible scenes (seconds).
	EmptyBackoff float64 `yaml:"empty_backoff"`

	// AutoStart lists groups whose rotation starts once the first scene list arrives.
	AutoStart []string `yaml:"auto_start"`
}

// SettingsConfig locates the persisted group document.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings for the switch history.
type DatabaseConfig struct {
	Path             string `yaml:"path"`
	WALMode          bool   `yaml:"wal_mode"`
	BusyTimeout      int    `yaml:"busy_timeout"`
	HistoryRetention int    `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains operator WebSocket settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings for the operator API.
// An empty secret leaves the API unauthenticated (loopback deployments).
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SCENEROTATOR_SECTION_KEY
// For example: SCENEROTATOR_OBS_URL, SCENEROTATOR_OBS_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		OBS: OBSConfig{
			URL:               "ws://127.0.0.1:4455",
			ConnectTimeout:    10,
			RequestTimeout:    10,
			ReconnectInterval: 5,
		},
		Rotation: RotationConfig{
			DefaultInterval: 30,
			EmptyBackoff:    1,
		},
		Settings: SettingsConfig{
			Path: "./data/scene_groups.json",
		},
		Database: DatabaseConfig{
			Path:             "./data/scenerotator.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "scenerotator",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SCENEROTATOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// OBS
	if v := os.Getenv("SCENEROTATOR_OBS_URL"); v != "" {
		cfg.OBS.URL = v
	}
	if v := os.Getenv("SCENEROTATOR_OBS_PASSWORD"); v != "" {
		cfg.OBS.Password = v
	}

	// Settings document
	if v := os.Getenv("SCENEROTATOR_SETTINGS_PATH"); v != "" {
		cfg.Settings.Path = v
	}

	// Database
	if v := os.Getenv("SCENEROTATOR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SCENEROTATOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SCENEROTATOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SCENEROTATOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SCENEROTATOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("SCENEROTATOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("SCENEROTATOR_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// OBS validation
	if c.OBS.URL == "" {
		errs = append(errs, "obs.url is required")
	} else if u, err := url.Parse(c.OBS.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, "obs.url must be a ws:// or wss:// address")
	}

	// Rotation validation
	// Same bounds as groups.ValidInterval.
	if !(c.Rotation.DefaultInterval >= 0.1 && c.Rotation.DefaultInterval <= 1e9) {
		errs = append(errs, "rotation.default_interval must be between 0.1 and 1e9 seconds")
	}
	if c.Rotation.EmptyBackoff <= 0 {
		errs = append(errs, "rotation.empty_backoff must be positive")
	}

	// Persistence validation
	if c.Settings.Path == "" {
		errs = append(errs, "settings.path is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// An empty secret disables auth; a short one is rejected.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ConnectTimeoutDuration returns the OBS connect timeout as a Duration.
func (c OBSConfig) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// RequestTimeoutDuration returns the OBS request timeout as a Duration.
func (c OBSConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ReconnectIntervalDuration returns the initial OBS reconnect delay as a Duration.
func (c OBSConfig) ReconnectIntervalDuration() time.Duration {
	return time.Duration(c.ReconnectInterval) * time.Second
}

// EmptyBackoffDuration returns the empty-group recheck delay as a Duration.
func (c RotationConfig) EmptyBackoffDuration() time.Duration {
	return time.Duration(c.EmptyBackoff * float64(time.Second))
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
