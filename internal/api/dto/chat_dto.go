package dto

import "encoding/json"

// SendMessageRequest is the body of POST /api/v1/chat/messages
type SendMessageRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	Content       string `json:"content" binding:"required,min=1,max=4096"`
	Source        string `json:"source" binding:"required,oneof=web telegram"`
	UserMessageID string `json:"user_message_id"`
}

// SubmitReceiptRequest is the body of POST /api/v1/chat/receipts. ImageURL
// points at the uploaded receipt; the OCR pipeline fetches it.
type SubmitReceiptRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	ImageURL      string `json:"image_url" binding:"required,url"`
	Source        string `json:"source" binding:"required,oneof=web telegram"`
	UserMessageID string `json:"user_message_id"`
}

// ListMessagesRequest holds the query parameters of GET /api/v1/chat/messages
type ListMessagesRequest struct {
	UserID   string `form:"user_id" binding:"required"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// MessageView is one transcript entry in a history page
type MessageView struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Source    string `json:"source"`
	ExpenseID string `json:"expenseId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// MessageList is a page of a user's history, newest first. NextCursor is
// empty on the last page.
type MessageList struct {
	Messages   []MessageView `json:"messages"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// EnqueuedJob is returned after a processing request is accepted
type EnqueuedJob struct {
	JobID string `json:"jobId"`
	State string `json:"state"`
}

// JobStatus mirrors the job row for polling clients; Result stays null until
// the job completes
type JobStatus struct {
	JobID    string          `json:"jobId"`
	State    string          `json:"state"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result"`
}

// Envelope wraps every API response
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}
