package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rookiemaniesh/trackaro/internal/api/domain"
	"github.com/rookiemaniesh/trackaro/internal/api/model"
	"github.com/rookiemaniesh/trackaro/shared/postgresql"
)

// Storage handles database operations for the API service
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateJob inserts a new job row in the waiting state
func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, queue_name, payload, state, progress, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.QueueName,
		job.Payload,
		job.State,
		job.Progress,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// DeleteJob removes a job row. Used by the producer to undo an insert whose
// queue message could not be published, so no undeliverable job lingers.
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by id on the named queue
func (s *Storage) GetJob(ctx context.Context, queueName, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT
			job_id, queue_name, payload, state, progress,
			result, failure_reason, created_at, updated_at
		FROM jobs
		WHERE job_id = $1 AND queue_name = $2
	`

	err := s.db.GetContext(ctx, &job, query, jobID, queueName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// MessageCursor marks a position in a user's message history. Paging keys on
// (created_at, message_id) so rows sharing a timestamp paginate stably.
type MessageCursor struct {
	CreatedAt time.Time
	MessageID string
}

// MessageFilter selects a page of a user's message history
type MessageFilter struct {
	UserID   string
	PageSize int
	Cursor   *MessageCursor
}

// ListMessages returns a user's messages newest-first. Fetches one row past
// PageSize so the caller can tell whether more pages remain.
func (s *Storage) ListMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error) {
	query := `
		SELECT
			message_id, user_id, content, sender, source, expense_id, created_at
		FROM messages
		WHERE user_id = $1
	`
	args := []interface{}{filter.UserID}
	argIdx := 2

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, message_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.MessageID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, message_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var messages []model.Message
	if err := s.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// UserExists reports whether the given user id references an existing user
func (s *Storage) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`

	if err := s.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}

	return exists, nil
}
