package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
obs:
  url: "ws://192.168.1.20:4455"
  password: "hunter2"
rotation:
  default_interval: 12.5
  auto_start: ["Intro"]
settings:
  path: "/tmp/groups.json"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8090
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OBS.URL != "ws://192.168.1.20:4455" {
		t.Errorf("OBS.URL = %q, want %q", cfg.OBS.URL, "ws://192.168.1.20:4455")
	}
	if cfg.OBS.Password != "hunter2" {
		t.Errorf("OBS.Password = %q, want %q", cfg.OBS.Password, "hunter2")
	}
	if cfg.Rotation.DefaultInterval != 12.5 {
		t.Errorf("Rotation.DefaultInterval = %v, want 12.5", cfg.Rotation.DefaultInterval)
	}
	if len(cfg.Rotation.AutoStart) != 1 || cfg.Rotation.AutoStart[0] != "Intro" {
		t.Errorf("Rotation.AutoStart = %v, want [Intro]", cfg.Rotation.AutoStart)
	}
	// Unset keys keep their defaults.
	if cfg.Rotation.EmptyBackoff != 1 {
		t.Errorf("Rotation.EmptyBackoff = %v, want default 1", cfg.Rotation.EmptyBackoff)
	}
	if cfg.Settings.Path != "/tmp/groups.json" {
		t.Errorf("Settings.Path = %q, want %q", cfg.Settings.Path, "/tmp/groups.json")
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
obs:
  url: "http://not-a-websocket"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for http obs.url, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "wss url accepted",
			mutate:  func(c *Config) { c.OBS.URL = "wss://obs.example.com:443" },
			wantErr: false,
		},
		{
			name:    "missing obs url",
			mutate:  func(c *Config) { c.OBS.URL = "" },
			wantErr: true,
		},
		{
			name:    "non websocket scheme",
			mutate:  func(c *Config) { c.OBS.URL = "tcp://127.0.0.1:4455" },
			wantErr: true,
		},
		{
			name:    "zero default interval",
			mutate:  func(c *Config) { c.Rotation.DefaultInterval = 0 },
			wantErr: true,
		},
		{
			name:    "default interval past duration range",
			mutate:  func(c *Config) { c.Rotation.DefaultInterval = 1e10 },
			wantErr: true,
		},
		{
			name:    "negative empty backoff",
			mutate:  func(c *Config) { c.Rotation.EmptyBackoff = -1 },
			wantErr: true,
		},
		{
			name:    "missing settings path",
			mutate:  func(c *Config) { c.Settings.Path = "" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "empty JWT secret disables auth",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: false,
		},
		{
			name:    "valid JWT secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = validJWTSecret },
			wantErr: false,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestDurations(t *testing.T) {
	obs := OBSConfig{ConnectTimeout: 3, RequestTimeout: 4, ReconnectInterval: 5}
	if got := obs.ConnectTimeoutDuration(); got != 3*time.Second {
		t.Errorf("ConnectTimeoutDuration() = %v, want 3s", got)
	}
	if got := obs.RequestTimeoutDuration(); got != 4*time.Second {
		t.Errorf("RequestTimeoutDuration() = %v, want 4s", got)
	}
	if got := obs.ReconnectIntervalDuration(); got != 5*time.Second {
		t.Errorf("ReconnectIntervalDuration() = %v, want 5s", got)
	}

	rot := RotationConfig{EmptyBackoff: 0.5}
	if got := rot.EmptyBackoffDuration(); got != 500*time.Millisecond {
		t.Errorf("EmptyBackoffDuration() = %v, want 500ms", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SCENEROTATOR_OBS_URL", "ws://10.0.0.5:4455")
	t.Setenv("SCENEROTATOR_OBS_PASSWORD", "obs-secret")
	t.Setenv("SCENEROTATOR_SETTINGS_PATH", "/custom/groups.json")
	t.Setenv("SCENEROTATOR_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SCENEROTATOR_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SCENEROTATOR_MQTT_USERNAME", "testuser")
	t.Setenv("SCENEROTATOR_MQTT_PASSWORD", "testpass")
	t.Setenv("SCENEROTATOR_API_HOST", "192.168.1.1")
	t.Setenv("SCENEROTATOR_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SCENEROTATOR_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"OBS.URL", cfg.OBS.URL, "ws://10.0.0.5:4455"},
		{"OBS.Password", cfg.OBS.Password, "obs-secret"},
		{"Settings.Path", cfg.Settings.Path, "/custom/groups.json"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.OBS.URL == "" {
		t.Error("defaultConfig should have non-empty OBS.URL")
	}
	if cfg.Rotation.DefaultInterval != 30 {
		t.Errorf("defaultConfig Rotation.DefaultInterval = %v, want 30", cfg.Rotation.DefaultInterval)
	}
	if cfg.Rotation.EmptyBackoff != 1 {
		t.Errorf("defaultConfig Rotation.EmptyBackoff = %v, want 1", cfg.Rotation.EmptyBackoff)
	}
	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should leave MQTT disabled")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
}

func TestLoad_ShippedExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load(configs/config.yaml) error = %v", err)
	}
	if cfg.OBS.URL != "ws://127.0.0.1:4455" {
		t.Errorf("OBS.URL = %q", cfg.OBS.URL)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("optional integrations should be off in the example")
	}
}
