package job

import "time"

// Event types published on the event bus.
const (
	EventCreated   = "job.created"
	EventStarted   = "job.started"
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
	EventRetry     = "job.retry"
	EventExhausted = "job.exhausted"
	EventCancelled = "job.cancelled"
	EventPaused    = "job.paused"
	EventResumed   = "job.resumed"
)

// JobEvent is the payload attached to every job lifecycle event.
type JobEvent struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Status         string        `json:"status"`
	ExecutionCount uint64        `json:"execution_count"`
	RetryAttempt   int           `json:"retry_attempt"`
	Duration       time.Duration `json:"duration,omitempty"`
	NextDelay      time.Duration `json:"next_delay,omitempty"`
	Error          string        `json:"error,omitempty"`
}
