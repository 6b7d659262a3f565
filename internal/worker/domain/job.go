package domain

// Job is a claimed job row loaded for processing
type Job struct {
	JobID     string
	QueueName string
	Payload   []byte
	State     string
	WorkerID  string
}

// JobMessage is the broker-side envelope handed from the dispatcher to the
// worker pool
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}

// JobPayload is the processing request carried in the job row
type JobPayload struct {
	UserID        string `json:"userId"`
	Content       string `json:"content"`
	Source        string `json:"source"`
	UserMessageID string `json:"userMessageId,omitempty"`
}

// JobResult is recorded on the job row when processing completes
type JobResult struct {
	MessageID string  `json:"messageId"`
	ExpenseID *string `json:"expenseId,omitempty"`
}
