package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rookiemaniesh/trackaro/internal/aiclient"
	"github.com/rookiemaniesh/trackaro/internal/config"
	"github.com/rookiemaniesh/trackaro/internal/worker"
	"github.com/rookiemaniesh/trackaro/internal/worker/storage"
	"github.com/rookiemaniesh/trackaro/shared/logger"
	"github.com/rookiemaniesh/trackaro/shared/postgresql"
	"github.com/rookiemaniesh/trackaro/shared/rabbitmq"
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

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Shared dependencies for all queue workers
	store := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)
	classifier := aiclient.NewClient(&aiclient.Config{
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
	}, appLogger.Logger)

	// One worker per configured queue, each with its own classify binding
	// and retry policy
	workers := make([]*worker.Worker, 0, len(cfg.Worker.Queues))
	for queueName, queueCfg := range cfg.Worker.Queues {
		classify, err := classifyFor(queueName, classifier)
		if err != nil {
			return err
		}

		workers = append(workers, worker.NewWorker(&worker.Config{
			Logger:        appLogger.Logger,
			RabbitClient:  rabbitClient,
			Store:         store,
			Classify:      classify,
			QueueName:     queueName,
			Concurrency:   queueCfg.Concurrency,
			PrefetchCount: queueCfg.PrefetchCount,
			MaxRetries:    queueCfg.MaxRetries,
			RetryBackoff:  queueCfg.RetryBackoff,
			JobTimeout:    cfg.Worker.JobTimeout,
		}))
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start workers in goroutines
	errChan := make(chan error, len(workers))
	for _, w := range workers {
		go func(w *worker.Worker) {
			if err := w.Start(ctx); err != nil {
				errChan <- err
			}
		}(w)
	}

	appLogger.Info("Worker service started successfully",
		slog.Int("queues", len(workers)),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop workers
	cancel()

	// Give workers time to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop workers, waiting for in-flight jobs
	done := make(chan struct{})
	go func() {
		for _, w := range workers {
			w.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Workers stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// classifyFor binds a queue to its classification call. The AI queue carries
// free text, the OCR queue carries an image reference; the response contract
// is the same for both.
func classifyFor(queueName string, client *aiclient.Client) (worker.ClassifyFunc, error) {
	switch queueName {
	case config.QueueAIProcessing:
		return client.ClassifyText, nil
	case config.QueueOCRProcessing:
		return client.ClassifyReceipt, nil
	default:
		return nil, fmt.Errorf("no classifier for queue %s", queueName)
	}
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

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		Queues:             cfg.Queues,
		QueueDurable:       cfg.Durable,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
