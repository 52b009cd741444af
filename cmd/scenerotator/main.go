// Scene Rotator - OBS program scene rotation service
//
// This is the main entry point for the scene rotator. It keeps a session
// with OBS Studio over obs-websocket v5, cycles the program output through
// named groups of scenes, and exposes an operator API over HTTP, WebSocket
// and MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/scene-rotator/migrations"

	"github.com/nerrad567/scene-rotator/internal/api"
	"github.com/nerrad567/scene-rotator/internal/groups"
	"github.com/nerrad567/scene-rotator/internal/history"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/database"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/influxdb"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/logging"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/mqtt"
	"github.com/nerrad567/scene-rotator/internal/obs"
	"github.com/nerrad567/scene-rotator/internal/switcher"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// historyPruneInterval is how often switch history older than the
// retention window is deleted.
const historyPruneInterval = time.Hour

func main() {
	issueFor := flag.String("issue-token", "", "print an API bearer token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of a token printed by -issue-token")
	flag.Parse()

	if *issueFor != "" {
		if err := issueToken(*issueFor, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C or SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting scene rotator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Group settings
	store := groups.NewStore(
		groups.NewJSONFileRepository(cfg.Settings.Path, cfg.Rotation.DefaultInterval),
		cfg.Rotation.DefaultInterval,
	)
	store.SetLogger(log.Component("groups"))
	store.Load(ctx)
	log.Info("scene groups loaded", "path", cfg.Settings.Path, "groups", len(store.List()))

	// Switch history
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	historyRepo := history.NewSQLiteRepository(db.DB)
	log.Info("database connected", "path", cfg.Database.Path)

	if cfg.Database.HistoryRetention > 0 {
		go pruneHistory(ctx, historyRepo, cfg.Database.HistoryRetention, log)
	}

	// OBS session
	client := obs.NewClient(obs.Config{
		URL:               cfg.OBS.URL,
		Password:          cfg.OBS.Password,
		ConnectTimeout:    cfg.OBS.ConnectTimeoutDuration(),
		RequestTimeout:    cfg.OBS.RequestTimeoutDuration(),
		ReconnectInterval: cfg.OBS.ReconnectIntervalDuration(),
	})
	client.SetLogger(log.Component("obs"))
	defer func() {
		log.Info("closing OBS session")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing OBS session", "error", closeErr)
		}
	}()

	svc, err := switcher.New(switcher.Deps{
		OBS:     client,
		Store:   store,
		History: historyRepo,
		Logger:  log.Component("switcher"),
	}, switcher.Config{
		AutoStart:    cfg.Rotation.AutoStart,
		EmptyBackoff: cfg.Rotation.EmptyBackoffDuration(),
	})
	if err != nil {
		return fmt.Errorf("creating switcher: %w", err)
	}
	defer func() {
		log.Info("stopping rotations")
		svc.Close()
	}()

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startMQTT(cfg, svc, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		svc.AddBroadcaster(switcher.NewTelemetryNotifier(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Operator API
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Service:  svc,
		History:  historyRepo,
		MQTT:     mqttClient,
		DB:       db,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	svc.AddBroadcaster(apiServer.Hub())
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Everything that listens to the session is registered; connect.
	if err := client.Start(); err != nil {
		return fmt.Errorf("starting OBS session: %w", err)
	}
	log.Info("connecting to OBS", "url", cfg.OBS.URL)
	go reportOBSReady(ctx, client, cfg.OBS.ConnectTimeoutDuration(), log)

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, InfluxDB,
	// MQTT, rotations, OBS session, database.

	if store.Dirty() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if saveErr := store.Save(saveCtx); saveErr != nil {
			log.Error("unsaved scene group changes", "error", saveErr)
		}
		cancel()
	}

	log.Info("scene rotator stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SCENEROTATOR_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SCENEROTATOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startMQTT connects to the broker, publishes switcher state to it and
// subscribes to the remote command topics.
func startMQTT(cfg *config.Config, svc *switcher.Service, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	svc.AddBroadcaster(switcher.NewMQTTNotifier(client, log.Component("mqtt")))

	topic := mqtt.Topics{}.AllCommands()
	if err := client.Subscribe(topic, byte(cfg.MQTT.QoS), svc.HandleCommand); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"commands", topic,
	)
	return client, nil
}

// pruneHistory deletes switch history older than retentionDays, once at
// startup and then every historyPruneInterval until ctx is cancelled.
func pruneHistory(ctx context.Context, repo *history.SQLiteRepository, retentionDays int, log *logging.Logger) {
	prune := func() {
		before := time.Now().AddDate(0, 0, -retentionDays)
		n, err := repo.Prune(ctx, before)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("pruning switch history failed", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("switch history pruned", "deleted", n, "before", before.Format(time.RFC3339))
		}
	}

	prune()
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// issueToken prints a bearer token signed with the configured JWT secret.
func issueToken(subject string, ttl time.Duration) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set; the API is unauthenticated")
	}

	token, err := api.IssueToken(cfg.Security.JWT.Secret, subject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// reportOBSReady logs whether the first OBS session came up within
// timeout. The client keeps retrying either way.
func reportOBSReady(ctx context.Context, client *obs.Client, timeout time.Duration, log *logging.Logger) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch err := client.WaitReady(waitCtx); {
	case err == nil:
		log.Info("OBS session ready")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("OBS not reachable yet, retrying in background", "after", timeout)
	}
}
