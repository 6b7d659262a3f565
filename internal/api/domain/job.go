package domain

import (
	"errors"
)

// Job lifecycle states. Transitions are monotonic: waiting -> active ->
// completed | failed. A crashed worker leaves the broker to redeliver, which
// looks like active -> waiting from the outside.
const (
	JobStateWaiting   = "waiting"
	JobStateActive    = "active"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
)

// Accepted source channels for chat messages
const (
	SourceWeb      = "web"
	SourceTelegram = "telegram"
)

var (
	// ErrJobNotFound is returned when no job with the given id exists on the queue
	ErrJobNotFound = errors.New("job not found")

	// ErrBrokerUnavailable is returned when the job store or queue service cannot be reached
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrUnknownUser is returned when the payload references a user that does not exist
	ErrUnknownUser = errors.New("unknown user")

	// ErrInvalidRequest is returned when an enqueue request fails validation
	ErrInvalidRequest = errors.New("invalid request")
)
