package history

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("history disabled")

// Config configures execution-history persistence.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", history is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Retention bounds how far back Prune keeps entries. 0 means keep
	// everything.
	Retention time.Duration
}

// Entry records one finished execution attempt. Keep it compact and
// schema-stable; this is what operators grep when a job misbehaves.
type Entry struct {
	At             time.Time `json:"at"`
	JobID          string    `json:"job_id"`
	Name           string    `json:"name"`
	Event          string    `json:"event"`
	Status         string    `json:"status"`
	ExecutionCount uint64    `json:"execution_count"`
	RetryAttempt   int       `json:"retry_attempt"`
	TookMS         int64     `json:"took_ms"`
	Error          string    `json:"error,omitempty"`
}
