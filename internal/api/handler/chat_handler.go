package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rookiemaniesh/trackaro/internal/api/domain"
	"github.com/rookiemaniesh/trackaro/internal/api/dto"
	"github.com/rookiemaniesh/trackaro/internal/api/producer"
	"github.com/rookiemaniesh/trackaro/internal/api/storage"
	"github.com/rookiemaniesh/trackaro/internal/config"
)

// SendMessage handles POST /api/v1/chat/messages
// Enqueues a free-text chat message for AI classification. Returns before any
// AI call is made; clients poll the job status endpoint for the outcome.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Envelope{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	h.enqueue(c, config.QueueAIProcessing, producer.Request{
		UserID:        req.UserID,
		Content:       req.Content,
		Source:        req.Source,
		UserMessageID: req.UserMessageID,
	})
}

// SubmitReceipt handles POST /api/v1/chat/receipts
// Enqueues a receipt image reference for OCR classification
func (h *ChatHandler) SubmitReceipt(c *gin.Context) {
	var req dto.SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Envelope{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	h.enqueue(c, config.QueueOCRProcessing, producer.Request{
		UserID:        req.UserID,
		Content:       req.ImageURL,
		Source:        req.Source,
		UserMessageID: req.UserMessageID,
	})
}

// ListMessages handles GET /api/v1/chat/messages
// Pages through a user's transcript newest-first with an opaque cursor
func (h *ChatHandler) ListMessages(c *gin.Context) {
	var req dto.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Envelope{
			Success: false,
			Message: "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeMessageCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Envelope{
			Success: false,
			Message: "Invalid cursor",
		})
		return
	}

	messages, err := h.messages.ListMessages(c.Request.Context(), storage.MessageFilter{
		UserID:   req.UserID,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list messages", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.Envelope{
			Success: false,
			Message: "Failed to list messages",
		})
		return
	}

	hasMore := len(messages) > req.PageSize
	if hasMore {
		messages = messages[:req.PageSize]
	}

	views := make([]dto.MessageView, len(messages))
	for i, msg := range messages {
		views[i] = dto.MessageView{
			MessageID: msg.MessageID,
			Content:   msg.Content,
			Sender:    msg.Sender,
			Source:    msg.Source,
			CreatedAt: msg.CreatedAt.Format(time.RFC3339),
		}
		if msg.ExpenseID.Valid {
			views[i].ExpenseID = msg.ExpenseID.String
		}
	}

	var nextCursor string
	if hasMore {
		last := messages[len(messages)-1]
		nextCursor = EncodeMessageCursor(&storage.MessageCursor{
			CreatedAt: last.CreatedAt,
			MessageID: last.MessageID,
		})
	}

	c.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Data: dto.MessageList{
			Messages:   views,
			NextCursor: nextCursor,
		},
	})
}

func (h *ChatHandler) enqueue(c *gin.Context, queueName string, req producer.Request) {
	jobID, err := h.producer.Enqueue(c.Request.Context(), queueName, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownUser):
			c.JSON(http.StatusBadRequest, dto.Envelope{
				Success: false,
				Message: err.Error(),
			})
		case errors.Is(err, domain.ErrBrokerUnavailable):
			h.logger.Error("Enqueue failed - broker unavailable",
				slog.String("queue", queueName),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusServiceUnavailable, dto.Envelope{
				Success: false,
				Message: "Queue service unavailable",
			})
		default:
			h.logger.Error("Enqueue failed",
				slog.String("queue", queueName),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, dto.Envelope{
				Success: false,
				Message: "Failed to enqueue message",
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.Envelope{
		Success: true,
		Data: dto.EnqueuedJob{
			JobID: jobID,
			State: domain.JobStateWaiting,
		},
	})
}
