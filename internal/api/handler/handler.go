package handler

import (
	"context"
	"log/slog"

	"github.com/rookiemaniesh/trackaro/internal/api/model"
	"github.com/rookiemaniesh/trackaro/internal/api/producer"
	"github.com/rookiemaniesh/trackaro/internal/api/storage"
)

// JobReader looks up job state for the status endpoint
type JobReader interface {
	GetJob(ctx context.Context, queueName, jobID string) (*model.Job, error)
}

// MessageReader pages through a user's persisted chat history
type MessageReader interface {
	ListMessages(ctx context.Context, filter storage.MessageFilter) ([]model.Message, error)
}

// Enqueuer hands processing requests to the job queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, req producer.Request) (string, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Store    JobReader
	Messages MessageReader
	Producer Enqueuer
}

// ChatHandler handles chat message and receipt submissions plus history reads
type ChatHandler struct {
	logger   *slog.Logger
	producer Enqueuer
	messages MessageReader
}

// NewChatHandler creates a new ChatHandler instance
func NewChatHandler(deps *Dependencies) *ChatHandler {
	return &ChatHandler{
		logger:   deps.Logger,
		producer: deps.Producer,
		messages: deps.Messages,
	}
}

// JobHandler handles job status queries
type JobHandler struct {
	logger *slog.Logger
	store  JobReader
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}
