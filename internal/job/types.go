package job

import (
	"context"
	"time"
)

// Resolver is the opaque dependency-resolution handle passed into every
// callable. The engine never inspects it; hosts use it to hand collaborators
// (repositories, API clients) to their job bodies.
type Resolver interface {
	Resolve(name string) (any, bool)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(name string) (any, bool)

func (f ResolverFunc) Resolve(name string) (any, bool) { return f(name) }

// Callable is the body of a tracked job. It runs under the job's own
// cancellation context and must return nil on success.
type Callable func(ctx context.Context, deps Resolver) error

// Runnable is the capability contract for host-supplied recurring work
// discovered at startup and registered via Manager.StartRunnableJobs.
type Runnable interface {
	Run(ctx context.Context, deps Resolver) error
	// Frequency is the declared recurrence interval. It is clamped to the
	// engine's interval bounds at registration.
	Frequency() time.Duration
}

// Named lets a Runnable pick its own stable name. Without it the engine
// derives one from the concrete type.
type Named interface {
	Name() string
}

// CronRunnable schedules by cron spec instead of a fixed interval.
// Frequency() is ignored when CronSpec returns a non-empty spec.
type CronRunnable interface {
	Runnable
	CronSpec() string
}

// OwnerScope is an informational grouping of jobs (0 = global). The engine
// stores it but never enforces anything with it.
type OwnerScope int

const OwnerGlobal OwnerScope = 0

// Definition is the full-configuration input to CreateTrackedJob.
type Definition struct {
	ID          string
	Name        string
	Description string
	Owner       OwnerScope

	Callable Callable

	// Interval is the pause between the end of one cycle and the next
	// firing. It is silently clamped to the engine's [Min, Max] bounds.
	Interval time.Duration

	// CronSpec, when set, overrides Interval for scheduling. It uses the
	// robfig/cron 5-field syntax with optional leading seconds field and
	// descriptors ("@hourly", "@every 10m").
	CronSpec string

	// AutoRestart enables backoff retries after a failed cycle.
	AutoRestart bool

	// MaxRetryAttempts is the retry budget per cycle. Zero means the engine
	// default; negative means no retries.
	MaxRetryAttempts int
}

// TrackedJob is a point-in-time snapshot of a job's record. GetJob and Jobs
// return copies; mutating one has no effect on the engine.
type TrackedJob struct {
	ID          string
	Name        string
	Description string
	Owner       OwnerScope

	Interval time.Duration
	CronSpec string

	Status Status

	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastExecutedAt  time.Time
	NextExecutionAt time.Time

	// ExecutionCount increments at the start of every attempt, retries
	// included.
	ExecutionCount uint64
	// CurrentRetryAttempt resets to 0 at the start of every fresh
	// (non-retry) cycle.
	CurrentRetryAttempt int
	// LastError holds the last failure message, cleared at the start of
	// every fresh cycle.
	LastError string

	AutoRestart      bool
	MaxRetryAttempts int
}
