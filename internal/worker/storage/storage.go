package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rookiemaniesh/trackaro/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// StaleJobAfter is how long an active row may go untouched before a claim
// may take it over. Covers workers that died mid-job, whose deliveries
// RabbitMQ redelivers but whose rows would otherwise stay active forever.
const StaleJobAfter = 5 * time.Minute

// ClaimJob attempts to move a job from waiting to active using optimistic
// locking. An active row can be re-entered by the worker that holds it (its
// terminal status write may have failed and the delivery requeued) or by
// anyone once started_at is stale. Returns domain.ErrJobAlreadyClaimed when
// the row is held and fresh.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET state = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND (state = $4
		       OR (state = $1 AND (worker_id = $2 OR started_at < NOW() - make_interval(secs => $5))))
		RETURNING job_id, queue_name, payload
	`

	var job domain.Job
	err := s.db.QueryRowContext(ctx, query,
		domain.JobStateActive, workerID, jobID, domain.JobStateWaiting, StaleJobAfter.Seconds(),
	).Scan(
		&job.JobID,
		&job.QueueName,
		&job.Payload,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job.State = domain.JobStateActive
	job.WorkerID = workerID

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("queue", job.QueueName),
	)

	return &job, nil
}

// UpdateJobProgress sets the progress marker on an active job
func (s *Storage) UpdateJobProgress(ctx context.Context, jobID string, progress int) error {
	query := `
		UPDATE jobs
		SET progress = $1,
		    updated_at = NOW()
		WHERE job_id = $2 AND state = $3
	`

	if _, err := s.db.ExecContext(ctx, query, progress, jobID, domain.JobStateActive); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	return nil
}

// CompleteJob records the result and moves the job to the completed state
func (s *Storage) CompleteJob(ctx context.Context, jobID string, result *domain.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		UPDATE jobs
		SET state = $1,
		    result = $2,
		    progress = 100,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, domain.JobStateCompleted, resultJSON, jobID); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
	)

	return nil
}

// FailJob records the failure reason and moves the job to the failed state
func (s *Storage) FailJob(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE jobs
		SET state = $1,
		    failure_reason = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, domain.JobStateFailed, reason, jobID); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Info("Job marked failed",
		slog.String("job_id", jobID),
		slog.String("reason", reason),
	)

	return nil
}

// SaveExpenseAndMessage persists an expense and its companion reply message
// in a single transaction, so a failed message write never leaves an orphaned
// expense behind. Returns the new expense and message ids.
func (s *Storage) SaveExpenseAndMessage(ctx context.Context, expense *domain.Expense, message *domain.Message) (string, string, error) {
	companionsJSON, err := json.Marshal(expense.Companions)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal companions: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	expenseID := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (
			expense_id, user_id, amount, category, subcategory,
			companions, expense_date, payment_method, description, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
		)
	`,
		expenseID,
		expense.UserID,
		expense.Amount,
		expense.Category,
		expense.Subcategory,
		companionsJSON,
		expense.Date,
		expense.PaymentMethod,
		expense.Description,
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to insert expense: %w", err)
	}

	messageID := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (
			message_id, user_id, content, sender, source, expense_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW()
		)
	`,
		messageID,
		message.UserID,
		message.Content,
		domain.SenderAI,
		message.Source,
		expenseID,
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("failed to commit expense and message: %w", err)
	}

	s.logger.Info("Expense and message persisted",
		slog.String("expense_id", expenseID),
		slog.String("message_id", messageID),
		slog.String("user_id", expense.UserID),
	)

	return expenseID, messageID, nil
}

// SaveMessage persists a standalone reply message (no expense). Returns the
// new message id.
func (s *Storage) SaveMessage(ctx context.Context, message *domain.Message) (string, error) {
	messageID := uuid.New().String()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (
			message_id, user_id, content, sender, source, expense_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, NULL, NOW()
		)
	`,
		messageID,
		message.UserID,
		message.Content,
		domain.SenderAI,
		message.Source,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	s.logger.Info("Message persisted",
		slog.String("message_id", messageID),
		slog.String("user_id", message.UserID),
	)

	return messageID, nil
}
