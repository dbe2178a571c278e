package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/photoflow-app/photoflow/internal/config"
	"github.com/photoflow-app/photoflow/internal/gallery"
	"github.com/photoflow-app/photoflow/internal/jobs"
	"github.com/photoflow-app/photoflow/internal/pipeline"
	"github.com/photoflow-app/photoflow/internal/runner"
	"github.com/photoflow-app/photoflow/internal/storage"
	"github.com/photoflow-app/photoflow/shared/logger"
	"github.com/photoflow-app/photoflow/shared/postgresql"
	"github.com/photoflow-app/photoflow/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.AutoMigrate {
		if err := dbClient.Migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		appLogger.Info("Database migrations applied")
	}

	provider, err := initStorage(&cfg.Storage, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	store := jobs.NewSQLStore(dbClient.GetDB(), appLogger.Logger, cfg.Worker.MaxAttempts)
	repo := gallery.NewSQLRepo(dbClient, appLogger.Logger)

	registry := jobs.NewRegistry()
	pipeline.Register(registry, pipeline.Deps{
		Logger:  appLogger.Logger,
		Jobs:    store,
		Gallery: repo,
		Storage: provider,
		TempDir: cfg.Storage.TempDir,
	})

	jobRunner := runner.New(&runner.Config{
		Logger:       appLogger.Logger,
		Store:        store,
		Registry:     registry,
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: cfg.Worker.PollInterval,
		LeaseTimeout: cfg.Worker.LeaseTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional wake-up channel: polling is authoritative, notifications
	// only shorten the latency between enqueue and pickup.
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		deliveries, err := rabbitClient.Consume(jobRunner.WorkerID())
		if err != nil {
			return fmt.Errorf("failed to start consuming notifications: %w", err)
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-deliveries:
					if !ok {
						appLogger.Warn("Notification channel closed, polling continues")
						return
					}
					jobRunner.Wake()
				}
			}
		}()

		appLogger.Info("RabbitMQ wake-up channel established")
	}

	errChan := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := jobRunner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Runner error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	// Give in-flight handlers a moment to finish before the process exits;
	// anything still running is re-claimable after the lease expires.
	shutdownTimer := time.NewTimer(cfg.Worker.ShutdownTimeout)
	defer shutdownTimer.Stop()
	select {
	case <-done:
	case <-shutdownTimer.C:
		appLogger.Warn("Shutdown timeout elapsed before runner stopped")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the wake-up notification consumer
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		ExchangeName:      cfg.Exchange,
		ExchangeType:      cfg.ExchangeType,
		QueueName:         cfg.Queue,
		RoutingKey:        cfg.RoutingKey,
		RetryAttempts:     cfg.RetryAttempts,
		RetryInterval:     cfg.RetryInterval,
		Heartbeat:         cfg.Heartbeat,
		ConnectionTimeout: cfg.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initStorage builds the configured storage backend
func initStorage(cfg *config.StorageConfig, logger *slog.Logger) (storage.Provider, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Provider(context.Background(), storage.S3Options{
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			BucketPrefix:   cfg.S3.BucketPrefix,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			PresignExpiry:  cfg.S3.PresignExpiry,
			CacheDir:       cfg.TempDir,
		}, logger)
	default:
		return storage.NewLocalProvider(cfg.Root, cfg.PublicBaseURL, logger)
	}
}
