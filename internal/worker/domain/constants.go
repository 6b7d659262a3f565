package domain

// Job lifecycle states
const (
	JobStateWaiting   = "waiting"
	JobStateActive    = "active"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
)

// SenderAI marks messages authored by the assistant
const SenderAI = "ai"
