// Skywatch Core - IoT Telemetry Platform
//
// This is the main entry point for the Skywatch Core application.
// Skywatch collects environmental telemetry from battery-powered field
// stations over MQTT, stores and calibrates their readings, evaluates
// alert thresholds, and serves dashboards over HTTP and WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/astromon/skywatch-core/migrations"

	"github.com/astromon/skywatch-core/internal/alert"
	"github.com/astromon/skywatch-core/internal/api"
	"github.com/astromon/skywatch-core/internal/device"
	"github.com/astromon/skywatch-core/internal/infrastructure/config"
	"github.com/astromon/skywatch-core/internal/infrastructure/database"
	"github.com/astromon/skywatch-core/internal/infrastructure/influxdb"
	"github.com/astromon/skywatch-core/internal/infrastructure/logging"
	"github.com/astromon/skywatch-core/internal/infrastructure/mqtt"
	"github.com/astromon/skywatch-core/internal/ingest"
	"github.com/astromon/skywatch-core/internal/liveness"
	"github.com/astromon/skywatch-core/internal/notify"
	"github.com/astromon/skywatch-core/internal/sensor"
	"github.com/astromon/skywatch-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Skywatch Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	deviceRepo := device.NewSQLiteRepository(db.DB)
	sensorRepo := sensor.NewSQLiteRepository(db.DB)
	readingRepo := telemetry.NewSQLiteRepository(db.DB)
	alertRepo := alert.NewSQLiteRepository(db.DB)

	// Connect to InfluxDB (optional mirror for readings and status reports)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Telegram notifier (optional)
	var notifier alert.Notifier
	if cfg.Telegram.Enabled {
		notifier = notify.NewTelegram(cfg.Telegram, log)
		log.Info("Telegram notifier enabled")
	} else {
		log.Info("Telegram notifier disabled, alerts are stored only")
	}
	dispatcher := alert.NewDispatcher(alertRepo, notifier, log)

	// Liveness monitor
	monitor := liveness.NewMonitor(deviceRepo, readingRepo, cfg.StalenessWindow(), log)
	if cfg.Liveness.SweepInterval > 0 {
		interval := time.Duration(cfg.Liveness.SweepInterval) * time.Second
		go monitor.Run(ctx, interval)
		log.Info("liveness monitor started",
			"sweep_interval", interval,
			"staleness_window", cfg.StalenessWindow(),
		)
	}

	// WebSocket hub, shared between the API server and the ingest pipeline
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Ingest pipeline
	// A typed nil *influxdb.Client must not become a non-nil Mirror.
	var mirror ingest.Mirror
	if influxClient != nil {
		mirror = influxClient
	}
	handler := ingest.NewHandler(deviceRepo, sensorRepo, readingRepo, dispatcher, mirror, hub, log)
	defer handler.Wait()

	// MQTT connector with broker settings read from the database on each
	// connection attempt, falling back to the static config.
	settings := mqtt.NewSQLiteSettings(db.DB, cfg.MQTT)
	connector := mqtt.NewConnector(cfg.MQTT, settings, handler, log)
	if startErr := connector.Start(ctx); startErr != nil {
		return fmt.Errorf("starting MQTT connector: %w", startErr)
	}
	defer func() {
		log.Info("closing MQTT connector")
		if closeErr := connector.Close(); closeErr != nil {
			log.Error("error closing MQTT connector", "error", closeErr)
		}
	}()
	log.Info("MQTT connector started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_root", cfg.MQTT.TopicRoot,
	)

	// HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Devices:     deviceRepo,
		Sensors:     sensorRepo,
		Readings:    readingRepo,
		Ingest:      handler,
		Monitor:     monitor,
		Dispatcher:  dispatcher,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("closing API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"tls", cfg.API.TLS.Enabled,
	)

	// Verify infrastructure connections are healthy. The MQTT connector is
	// excluded: its supervisor keeps retrying in the background, so a broker
	// that is down at startup is not a fatal condition.
	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. MQTT connector
	// 3. Ingest drain
	// 4. InfluxDB (if enabled)
	// 5. Database

	log.Info("Skywatch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SKYWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SKYWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
