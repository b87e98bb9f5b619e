// NomNom Core - Smart Pet Feeder Bridge
//
// This is the main entry point for the NomNom Core service. It bridges an
// MQTT-connected pet feeder to HTTP dashboards:
//   - Folds firmware telemetry into a live summary (REST + WebSocket)
//   - Publishes feed commands (manual and scheduled) to the device
//   - Archives telemetry to SQLite and mirrors metrics to InfluxDB
//   - Raises Telegram alerts when the bowl runs empty
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/nomnomlab/nomnom-core/migrations"

	"github.com/nomnomlab/nomnom-core/internal/api"
	"github.com/nomnomlab/nomnom-core/internal/bridge"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/config"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/database"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/influxdb"
	"github.com/nomnomlab/nomnom-core/internal/infrastructure/logging"
	"github.com/nomnomlab/nomnom-core/internal/telemetry"
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

// warmConnectTimeout bounds the startup broker connection attempt.
// Failure is non-fatal: the bridge reconnects lazily on first use.
const warmConnectTimeout = 15 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
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
	log.Info("starting NomNom Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load .env for local development (secrets like NOMNOM_TELEGRAM_BOT_TOKEN).
	// A missing file is normal in production.
	if err := godotenv.Load(); err == nil {
		log.Info("loaded environment from .env")
	}

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

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

	// Telemetry archive repository
	repo := telemetry.NewSQLiteRepository(db.DB)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	influxClient, err = influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		influxClient = nil
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Create the feeder bridge
	feeder := bridge.New(cfg, log)
	defer func() {
		log.Info("closing feeder bridge")
		if closeErr := feeder.Close(); closeErr != nil {
			log.Error("error closing bridge", "error", closeErr)
		}
	}()

	// Wire telemetry consumers onto the bridge
	archiver := telemetry.NewArchiver(repo, log)
	feeder.Register(archiver.Listener())
	log.Info("telemetry archiver registered")

	if influxClient != nil {
		recorder := telemetry.NewMetricsRecorder(influxClient, cfg.Feeder.DeviceID)
		feeder.Register(recorder.Listener())
		log.Info("metrics recorder registered", "device_id", cfg.Feeder.DeviceID)
	}

	if cfg.Notifications.Telegram.Enabled {
		sender, senderErr := telemetry.NewTelegramSender(cfg.Notifications.Telegram)
		if senderErr != nil {
			return fmt.Errorf("connecting to Telegram: %w", senderErr)
		}
		notifier := telemetry.NewNotifier(sender, cfg.Feeder, cfg.TelegramCooldown(), log)
		feeder.Register(notifier.Listener())
		log.Info("telegram notifier registered", "chat_id", cfg.Notifications.Telegram.ChatID)
	} else {
		log.Info("telegram notifications disabled")
	}

	// Warm up the broker connection so telemetry flows before the first
	// HTTP request. Failure here is not fatal.
	warmCtx, warmCancel := context.WithTimeout(ctx, warmConnectTimeout)
	if connErr := feeder.EnsureConnected(warmCtx); connErr != nil {
		log.Warn("initial broker connection failed, will retry on demand", "error", connErr)
	} else {
		log.Info("MQTT broker connected", "base_topic", cfg.Feeder.BaseTopic)
	}
	warmCancel()

	// Start the HTTP API server
	var feedMetrics api.FeedMetrics
	if influxClient != nil {
		feedMetrics = influxClient
	}
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Bridge:   feeder,
		History:  repo,
		Metrics:  feedMetrics,
		DeviceID: cfg.Feeder.DeviceID,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify infrastructure is healthy
	if err := healthCheck(ctx, db, server, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Feeder bridge
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("NomNom Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NOMNOM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NOMNOM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
//
// The MQTT broker is deliberately excluded: the bridge connects lazily
// and an unreachable broker must not prevent startup.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - server: API server to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
