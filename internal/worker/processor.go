package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rookiemaniesh/trackaro/internal/aiclient"
	"github.com/rookiemaniesh/trackaro/internal/worker/domain"
)

// Store is the persistence surface the processor needs
type Store interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	UpdateJobProgress(ctx context.Context, jobID string, progress int) error
	CompleteJob(ctx context.Context, jobID string, result *domain.JobResult) error
	FailJob(ctx context.Context, jobID, reason string) error
	SaveExpenseAndMessage(ctx context.Context, expense *domain.Expense, message *domain.Message) (string, string, error)
	SaveMessage(ctx context.Context, message *domain.Message) (string, error)
}

// ClassifyFunc invokes the external classification service for one payload.
// The AI queue binds this to text classification, the OCR queue to receipt
// classification.
type ClassifyFunc func(ctx context.Context, content, userID string) (*aiclient.Outcome, error)

// terminalWriteTimeout bounds the completed/failed status writes. These run
// on a detached context so a canceled job or shutdown context cannot prevent
// recording the outcome.
const terminalWriteTimeout = 10 * time.Second

// Processor turns one claimed job into persisted domain state
type Processor struct {
	logger       *slog.Logger
	store        Store
	classify     ClassifyFunc
	workerID     string
	maxRetries   int
	retryBackoff time.Duration
	jobTimeout   time.Duration
}

// ProcessorConfig holds processor settings
type ProcessorConfig struct {
	Logger       *slog.Logger
	Store        Store
	Classify     ClassifyFunc
	WorkerID     string
	MaxRetries   int
	RetryBackoff time.Duration
	JobTimeout   time.Duration
}

// NewProcessor creates a new Processor instance
func NewProcessor(cfg *ProcessorConfig) *Processor {
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = 500 * time.Millisecond
	}

	return &Processor{
		logger:       cfg.Logger,
		store:        cfg.Store,
		classify:     cfg.Classify,
		workerID:     cfg.WorkerID,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: retryBackoff,
		jobTimeout:   cfg.JobTimeout,
	}
}

// Process handles a single delivery. A nil return means the message should be
// acked; a returned error is inspected by the pool for the requeue decision.
// Jobs that reach a terminal state (completed or failed) are always acked -
// the job row is the durable record of the outcome. If the terminal write
// itself fails, the delivery requeues so the row never sticks in active.
func (p *Processor) Process(ctx context.Context, msg *domain.JobMessage) error {
	p.logger.Info("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", p.workerID),
	)

	// Claim the row (waiting -> active). Redelivery of a job another worker
	// owns lands here and is skipped without requeue.
	job, err := p.store.ClaimJob(ctx, msg.JobID, p.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			p.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		// Database error; could be transient, let the broker redeliver
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	var payload domain.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Error("Failed to parse job payload",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		if failErr := p.failJob(job.JobID, fmt.Sprintf("invalid payload JSON: %s", err.Error())); failErr != nil {
			return failErr
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	outcome, err := p.classifyWithRetry(jobCtx, job.JobID, payload)
	if err != nil {
		// terminal failure is recorded on the row, then the message is acked
		return p.failJob(job.JobID, err.Error())
	}

	// Classification done; persistence is what remains
	if err := p.store.UpdateJobProgress(jobCtx, job.JobID, 50); err != nil {
		p.logger.Warn("Failed to update job progress",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	result, err := p.persistOutcome(jobCtx, payload, outcome)
	if err != nil {
		p.logger.Error("Failed to persist processing outcome",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return p.failJob(job.JobID, err.Error())
	}

	if err := p.completeJob(job.JobID, result); err != nil {
		return err
	}

	p.logger.Info("Job processed",
		slog.String("job_id", job.JobID),
		slog.String("kind", string(outcome.Kind)),
	)

	return nil
}

// classifyWithRetry calls the classification service with a bounded retry and
// exponential backoff. The last error is returned verbatim so the failure
// reason on the job row preserves the underlying message.
func (p *Processor) classifyWithRetry(ctx context.Context, jobID string, payload domain.JobPayload) (*aiclient.Outcome, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		outcome, err := p.classify(ctx, payload.Content, payload.UserID)
		if err == nil {
			if attempt > 0 {
				p.logger.Info("Classification succeeded after retry",
					slog.String("job_id", jobID),
					slog.Int("attempt", attempt+1),
				)
			}
			return outcome, nil
		}

		lastErr = err

		// A malformed response will not improve on retry
		if errors.Is(err, aiclient.ErrInvalidResponse) {
			break
		}

		if attempt < p.maxRetries {
			backoff := time.Duration(float64(p.retryBackoff) * float64(uint(1)<<uint(attempt)))
			p.logger.Warn("Classification failed, retrying...",
				slog.String("job_id", jobID),
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", p.maxRetries),
				slog.Duration("retry_after", backoff),
				slog.String("error", err.Error()),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", lastErr, ctx.Err())
			}
		}
	}

	return nil, lastErr
}

// persistOutcome writes the domain records for a successful classification.
// An expense outcome yields one Expense and one Message in a single
// transaction; anything else yields exactly one Message.
func (p *Processor) persistOutcome(ctx context.Context, payload domain.JobPayload, outcome *aiclient.Outcome) (*domain.JobResult, error) {
	message := &domain.Message{
		UserID:  payload.UserID,
		Content: outcome.Reply,
		Sender:  domain.SenderAI,
		Source:  payload.Source,
	}

	if outcome.Kind != aiclient.KindExpense {
		messageID, err := p.store.SaveMessage(ctx, message)
		if err != nil {
			return nil, err
		}
		return &domain.JobResult{MessageID: messageID}, nil
	}

	expense := &domain.Expense{
		UserID:        payload.UserID,
		Amount:        outcome.Expense.Amount,
		Category:      outcome.Expense.Category,
		Subcategory:   outcome.Expense.Subcategory,
		Companions:    outcome.Expense.Companions,
		Date:          outcome.Expense.Date,
		PaymentMethod: outcome.Expense.PaymentMethod,
		Description:   outcome.Expense.Description,
	}

	expenseID, messageID, err := p.store.SaveExpenseAndMessage(ctx, expense, message)
	if err != nil {
		return nil, err
	}

	return &domain.JobResult{
		MessageID: messageID,
		ExpenseID: &expenseID,
	}, nil
}

// failJob records a terminal failure on a detached context. When the status
// write itself fails the error comes back retryable: acking would strand the
// row in active with the message gone, so the delivery must requeue and the
// claiming worker re-enter.
func (p *Processor) failJob(jobID, reason string) error {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()

	if err := p.store.FailJob(ctx, jobID, reason); err != nil {
		p.logger.Error("Failed to mark job failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return domain.NewRetryableError(fmt.Errorf("failed to mark job failed: %w", err))
	}

	return nil
}

// completeJob records the result on a detached context, with the same
// requeue-on-write-failure contract as failJob
func (p *Processor) completeJob(jobID string, result *domain.JobResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()

	if err := p.store.CompleteJob(ctx, jobID, result); err != nil {
		p.logger.Error("Failed to mark job completed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return domain.NewRetryableError(fmt.Errorf("failed to mark job completed: %w", err))
	}

	return nil
}
