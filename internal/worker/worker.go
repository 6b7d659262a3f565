package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rookiemaniesh/trackaro/internal/worker/domain"
	"github.com/rookiemaniesh/trackaro/shared/rabbitmq"
)

// Config holds worker configuration for one consumed queue
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Store         Store
	Classify      ClassifyFunc
	QueueName     string
	Concurrency   int
	PrefetchCount int
	MaxRetries    int
	RetryBackoff  time.Duration
	JobTimeout    time.Duration
}

// Worker consumes one queue and processes its jobs with a goroutine pool.
// Each worker holds its own AMQP channel; acks and nacks go through it.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	channel       *amqp.Channel
	processor     *Processor
	queueName     string
	concurrency   int
	prefetchCount int
	workerID      string
	jobsChan      chan *domain.JobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance for the given queue
func NewWorker(cfg *Config) *Worker {
	workerID := fmt.Sprintf("%s-%s", cfg.QueueName, uuid.New().String()[:8])

	processor := NewProcessor(&ProcessorConfig{
		Logger:       cfg.Logger,
		Store:        cfg.Store,
		Classify:     cfg.Classify,
		WorkerID:     workerID,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		JobTimeout:   cfg.JobTimeout,
	})

	return &Worker{
		logger:        cfg.Logger.With(slog.String("queue", cfg.QueueName)),
		rabbitClient:  cfg.RabbitClient,
		processor:     processor,
		queueName:     cfg.QueueName,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		workerID:      workerID,
		jobsChan:      make(chan *domain.JobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing jobs. Blocks until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer for %s: %w", w.queueName, err)
	}

	w.spawnWorkerPool(ctx)

	go w.startMessageDispatcher(ctx, deliveries)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs, then closes
// its consumer channel
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()

	if w.channel != nil {
		if err := w.channel.Close(); err != nil {
			w.logger.Error("Failed to close consumer channel",
				slog.String("error", err.Error()),
			)
		}
	}

	w.logger.Info("Worker stopped")
}
