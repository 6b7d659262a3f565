package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rookiemaniesh/trackaro/internal/api/domain"
	"github.com/rookiemaniesh/trackaro/internal/api/model"
)

// MaxContentLength caps the size of a chat message or receipt reference
const MaxContentLength = 4096

// JobStore persists job rows
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	DeleteJob(ctx context.Context, jobID string) error
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Publisher delivers the queue message announcing a new job
type Publisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// Request is a processing request handed to the producer by the HTTP layer
type Request struct {
	UserID        string
	Content       string
	Source        string
	UserMessageID string
}

// Producer enqueues processing requests onto a named queue. It never touches
// the AI service; its call returns as soon as the job is durably enqueued.
type Producer struct {
	logger    *slog.Logger
	store     JobStore
	publisher Publisher
}

// NewProducer creates a new Producer instance
func NewProducer(logger *slog.Logger, store JobStore, publisher Publisher) *Producer {
	return &Producer{
		logger:    logger,
		store:     store,
		publisher: publisher,
	}
}

// queueMessage is the broker-side envelope; the payload itself lives in the
// job row, so redelivery always sees current state
type queueMessage struct {
	JobID string `json:"job_id"`
}

// Enqueue validates the request, persists a waiting job, and publishes its id
// on the queue. Returns the job id. Duplicate submissions create duplicate
// jobs; no deduplication is performed.
func (p *Producer) Enqueue(ctx context.Context, queueName string, req Request) (string, error) {
	if err := p.validate(ctx, req); err != nil {
		return "", err
	}

	payload, err := json.Marshal(model.JobPayload{
		UserID:        req.UserID,
		Content:       req.Content,
		Source:        req.Source,
		UserMessageID: req.UserMessageID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	job := model.Job{
		JobID:     uuid.New().String(),
		QueueName: queueName,
		Payload:   payload,
		State:     domain.JobStateWaiting,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := p.store.CreateJob(ctx, &job); err != nil {
		p.logger.Error("Failed to persist job",
			slog.String("queue", queueName),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	body, err := json.Marshal(queueMessage{JobID: job.JobID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal queue message: %w", err)
	}

	if err := p.publisher.PublishWithRetry(ctx, queueName, body, "application/json"); err != nil {
		p.logger.Error("Failed to publish job message, removing job row",
			slog.String("job_id", job.JobID),
			slog.String("queue", queueName),
			slog.String("error", err.Error()),
		)

		if delErr := p.store.DeleteJob(ctx, job.JobID); delErr != nil {
			p.logger.Error("Failed to remove job row after publish failure",
				slog.String("job_id", job.JobID),
				slog.String("error", delErr.Error()),
			)
		}

		return "", fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	p.logger.Info("Job enqueued",
		slog.String("job_id", job.JobID),
		slog.String("queue", queueName),
		slog.String("user_id", req.UserID),
		slog.String("source", req.Source),
	)

	return job.JobID, nil
}

// validate enforces the enqueue contract. The job store itself is agnostic to
// user ids; the existence check happens here, before anything is enqueued.
func (p *Producer) validate(ctx context.Context, req Request) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	if len(req.Content) == 0 || len(req.Content) > MaxContentLength {
		return fmt.Errorf("%w: content must be 1..%d characters", domain.ErrInvalidRequest, MaxContentLength)
	}

	if req.Source != domain.SourceWeb && req.Source != domain.SourceTelegram {
		return fmt.Errorf("%w: source must be web or telegram", domain.ErrInvalidRequest)
	}

	exists, err := p.store.UserExists(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrUnknownUser, req.UserID)
	}

	return nil
}
