package model

import (
	"database/sql"
	"time"
)

// Job is the durable record backing a queued processing request
type Job struct {
	JobID         string         `db:"job_id"`
	QueueName     string         `db:"queue_name"`
	Payload       []byte         `db:"payload"`
	State         string         `db:"state"`
	Progress      int            `db:"progress"`
	Result        sql.NullString `db:"result"`
	FailureReason sql.NullString `db:"failure_reason"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// Message is a persisted assistant reply in the chat transcript
type Message struct {
	MessageID string         `db:"message_id"`
	UserID    string         `db:"user_id"`
	Content   string         `db:"content"`
	Sender    string         `db:"sender"`
	Source    string         `db:"source"`
	ExpenseID sql.NullString `db:"expense_id"`
	CreatedAt time.Time      `db:"created_at"`
}

// JobPayload is the serialized processing request carried by a job
type JobPayload struct {
	UserID        string `json:"userId"`
	Content       string `json:"content"`
	Source        string `json:"source"`
	UserMessageID string `json:"userMessageId,omitempty"`
}
