package job

// Status is the lifecycle state of a tracked job.
//
// Pending -> Running -> {Completed, Failed, Cancelled}. Completed goes back
// to Pending once the next firing is scheduled; Failed goes back to Pending
// only while the retry budget allows. Exhausted and Cancelled are terminal.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	// StatusExhausted marks a job whose retry budget is spent (or whose
	// AutoRestart is off after a failure). Unlike the transient Failed state
	// it is terminal: the engine never touches the job again. Cancel and
	// re-register under the same ID to revive it.
	StatusExhausted
	StatusCancelled
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusExhausted:
		return "exhausted"
	case StatusCancelled:
		return "cancelled"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Terminal reports whether the engine will never schedule this job again.
func (s Status) Terminal() bool {
	return s == StatusExhausted || s == StatusCancelled
}
