package job

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"jobmill/internal/backoff"
	"jobmill/internal/eventbus"
	rtsup "jobmill/internal/runtime/supervisor"
	logx "jobmill/pkg/logx"
)

// Config controls the engine.
//
// Zero fields fall back to defaults; explicitly invalid interval bounds
// (negative, or Min > Max) fail New.
type Config struct {
	// MinInterval/MaxInterval bound every job interval. Out-of-range
	// requested intervals are silently clamped at registration.
	MinInterval time.Duration // default 1s
	MaxInterval time.Duration // default 24h

	// RetryBase/RetryMaxDelay parameterize the exponential retry backoff.
	RetryBase     time.Duration // default 5s
	RetryMaxDelay time.Duration // default 300s

	// DefaultMaxRetries applies when a definition leaves MaxRetryAttempts
	// at zero.
	DefaultMaxRetries int // default 3

	// ShutdownTimeout bounds how long Close waits for in-flight executions.
	ShutdownTimeout time.Duration // default 5s

	// Timezone is the IANA location used to evaluate cron specs.
	// Empty means time.Local.
	Timezone string
}

func (c Config) withDefaults() Config {
	if c.MinInterval == 0 {
		c.MinInterval = time.Second
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 24 * time.Hour
	}
	if c.RetryBase <= 0 {
		c.RetryBase = backoff.DefaultBase
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = backoff.DefaultMax
	}
	if c.DefaultMaxRetries <= 0 {
		c.DefaultMaxRetries = 3
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	return c
}

// trackedJob is the engine-internal record. rec is the externally visible
// snapshot state; everything else is scheduling runtime.
type trackedJob struct {
	mu  sync.Mutex
	rec TrackedJob

	callable Callable
	sched    cron.Schedule // nil for plain interval jobs

	// Per-job cancellation signal, set once for the job's whole lifetime.
	ctx    context.Context
	cancel context.CancelFunc

	// Exactly one scheduling handle is outstanding per job. ver increments
	// on every (re)schedule, pause, cancel and resume so a stale timer
	// callback that already fired can detect it lost the race.
	timer *time.Timer
	ver   uint64
}

// Manager is the lifecycle controller and registry for tracked jobs.
type Manager struct {
	cfg    Config
	bounds Bounds
	retry  backoff.Strategy
	parser cron.Parser
	loc    *time.Location

	log  logx.Logger
	bus  eventbus.Bus
	deps Resolver
	sup  *rtsup.Supervisor

	mu       sync.RWMutex
	jobs     map[string]*trackedJob
	disposed bool

	// Throttles repeated failure warnings so a hot-failing job doesn't
	// flood the log.
	failWarn *rate.Limiter
}

// New constructs the engine. It fails when the interval bounds are invalid
// (Min > Max, or either negative).
func New(cfg Config, deps Resolver, log logx.Logger, bus eventbus.Bus) (*Manager, error) {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}

	bounds := Bounds{Min: cfg.MinInterval, Max: cfg.MaxInterval}
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("job: invalid timezone %q: %w", tz, err)
		}
		loc = l
	}

	m := &Manager{
		cfg:    cfg,
		bounds: bounds,
		retry:  backoff.NewExponential(cfg.RetryBase, cfg.RetryMaxDelay),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:      loc,
		log:      log,
		bus:      bus,
		deps:     deps,
		sup:      rtsup.New(context.Background(), rtsup.WithLogger(log.With(logx.String("comp", "job")))),
		jobs:     map[string]*trackedJob{},
		failWarn: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	return m, nil
}

// CreateTrackedJob registers a fully configured job and schedules its first
// firing one interval from now. It returns false (and mutates nothing) when
// the engine is disposed, the definition is incomplete, the ID is taken, or
// the cron spec does not parse.
func (m *Manager) CreateTrackedJob(def Definition) bool {
	if err := m.createJob(def); err != nil {
		m.log.Warn("job registration rejected", logx.String("id", def.ID), logx.String("name", def.Name), logx.Err(err))
		return false
	}
	return true
}

// CreateDynamicJob registers an ad-hoc recurring job with engine-default
// failure policy (retries enabled, default budget).
func (m *Manager) CreateDynamicJob(id, name string, every time.Duration, fn Callable) bool {
	return m.CreateTrackedJob(Definition{
		ID:          id,
		Name:        name,
		Interval:    every,
		Callable:    fn,
		AutoRestart: true,
	})
}

func (m *Manager) createJob(def Definition) error {
	id := strings.TrimSpace(def.ID)
	if id == "" {
		return ErrMissingID
	}
	if def.Callable == nil {
		return ErrMissingCallable
	}

	var sched cron.Schedule
	spec := strings.TrimSpace(def.CronSpec)
	if spec != "" {
		s, err := m.parser.Parse(spec)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadCronSpec, err)
		}
		sched = s
	}

	retries := def.MaxRetryAttempts
	if retries == 0 {
		retries = m.cfg.DefaultMaxRetries
	}
	if retries < 0 {
		retries = 0
	}

	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	j := &trackedJob{
		rec: TrackedJob{
			ID:               id,
			Name:             strings.TrimSpace(def.Name),
			Description:      def.Description,
			Owner:            def.Owner,
			Interval:         m.bounds.Clamp(def.Interval),
			CronSpec:         spec,
			Status:           StatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
			AutoRestart:      def.AutoRestart,
			MaxRetryAttempts: retries,
		},
		callable: def.Callable,
		sched:    sched,
		ctx:      ctx,
		cancel:   cancel,
	}
	if j.rec.Name == "" {
		j.rec.Name = id
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		cancel()
		return ErrDisposed
	}
	if _, exists := m.jobs[id]; exists {
		m.mu.Unlock()
		cancel()
		return ErrDuplicateID
	}
	m.jobs[id] = j
	m.mu.Unlock()

	j.mu.Lock()
	m.scheduleLocked(j, m.nextDelay(j, now), false)
	j.mu.Unlock()

	m.log.Info("job registered",
		logx.String("id", id),
		logx.String("name", j.rec.Name),
		logx.Duration("interval", j.rec.Interval),
		logx.String("cron", spec),
		logx.Bool("auto_restart", def.AutoRestart),
		logx.Int("retry_budget", retries),
	)
	m.publish(EventCreated, JobEvent{ID: id, Name: j.rec.Name, Status: StatusPending.String()})
	return nil
}

// CancelJob permanently cancels a job: its in-flight execution (if any) is
// signalled, its scheduling handle is dropped, and the record leaves the
// registry. Returns false for unknown IDs.
func (m *Manager) CancelJob(id string) bool {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if ok {
		delete(m.jobs, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	j.mu.Lock()
	m.stopTimerLocked(j)
	j.cancel()
	j.rec.Status = StatusCancelled
	j.rec.UpdatedAt = time.Now()
	j.rec.NextExecutionAt = time.Time{}
	name := j.rec.Name
	j.mu.Unlock()

	m.log.Info("job cancelled", logx.String("id", id), logx.String("name", name))
	m.publish(EventCancelled, JobEvent{ID: id, Name: name, Status: StatusCancelled.String()})
	return true
}

// PauseJob drops the pending scheduling handle without interrupting an
// in-flight execution. The job stays in the registry until resumed or
// cancelled.
func (m *Manager) PauseJob(id string) bool {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	j.mu.Lock()
	if j.rec.Status.Terminal() {
		j.mu.Unlock()
		return false
	}
	m.stopTimerLocked(j)
	j.rec.Status = StatusPaused
	j.rec.UpdatedAt = time.Now()
	j.rec.NextExecutionAt = time.Time{}
	name := j.rec.Name
	j.mu.Unlock()

	m.log.Info("job paused", logx.String("id", id), logx.String("name", name))
	m.publish(EventPaused, JobEvent{ID: id, Name: name, Status: StatusPaused.String()})
	return true
}

// ResumeJob reschedules a paused job one interval from now. Returns false
// when the job is unknown or not paused.
func (m *Manager) ResumeJob(id string) bool {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	j.mu.Lock()
	if j.rec.Status != StatusPaused {
		j.mu.Unlock()
		m.log.Debug("resume rejected", logx.String("id", id), logx.Err(ErrNotPaused))
		return false
	}
	j.rec.Status = StatusPending
	j.rec.UpdatedAt = time.Now()
	m.scheduleLocked(j, m.nextDelay(j, time.Now()), false)
	name := j.rec.Name
	next := j.rec.NextExecutionAt
	j.mu.Unlock()

	m.log.Info("job resumed", logx.String("id", id), logx.String("name", name), logx.Time("next", next))
	m.publish(EventResumed, JobEvent{ID: id, Name: name, Status: StatusPending.String()})
	return true
}

// GetJob returns a snapshot of the job's record. The second return is false
// for unknown (or already cancelled) IDs.
func (m *Manager) GetJob(id string) (TrackedJob, bool) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return TrackedJob{}, false
	}
	j.mu.Lock()
	rec := j.rec
	j.mu.Unlock()
	return rec, true
}

// Jobs returns snapshots of every registered job, sorted by ID.
func (m *Manager) Jobs() []TrackedJob {
	m.mu.RLock()
	all := make([]*trackedJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		all = append(all, j)
	}
	m.mu.RUnlock()

	out := make([]TrackedJob, 0, len(all))
	for _, j := range all {
		j.mu.Lock()
		out = append(out, j.rec)
		j.mu.Unlock()
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// StartRunnableJobs registers every host-supplied runnable under a
// deterministic generated identity (so repeated discovery deduplicates).
// Individual registration failures are logged and skipped. It returns the
// number of jobs actually registered.
func (m *Manager) StartRunnableJobs(runnables ...Runnable) int {
	registered := 0
	for _, r := range runnables {
		if r == nil {
			continue
		}
		name := runnableName(r)
		def := Definition{
			ID:          runnableID(name),
			Name:        name,
			Description: "auto-discovered runnable job",
			Interval:    r.Frequency(),
			AutoRestart: true,
		}
		if cr, ok := r.(CronRunnable); ok {
			def.CronSpec = cr.CronSpec()
		}
		run := r.Run
		def.Callable = func(ctx context.Context, deps Resolver) error {
			return run(ctx, deps)
		}
		if !m.CreateTrackedJob(def) {
			m.log.Warn("runnable job skipped", logx.String("name", name))
			continue
		}
		registered++
	}
	m.log.Info("runnable jobs started", logx.Int("registered", registered), logx.Int("offered", len(runnables)))
	return registered
}

// Close disposes the engine: no further registrations, every job's
// cancellation signal fires, scheduling handles are dropped, and in-flight
// executions get ShutdownTimeout (bounded additionally by ctx) to observe
// cancellation. Stragglers are abandoned with a warning, never killed.
func (m *Manager) Close(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	all := make([]*trackedJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		all = append(all, j)
	}
	m.jobs = map[string]*trackedJob{}
	m.mu.Unlock()

	for _, j := range all {
		j.mu.Lock()
		m.stopTimerLocked(j)
		j.cancel()
		if !j.rec.Status.Terminal() {
			j.rec.Status = StatusCancelled
			j.rec.UpdatedAt = time.Now()
			j.rec.NextExecutionAt = time.Time{}
		}
		j.mu.Unlock()
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	err := m.sup.Wait(waitCtx)
	cancel()
	if err != nil {
		m.log.Warn("shutdown timed out; abandoning in-flight executions",
			logx.Duration("waited", time.Since(start)),
			logx.Int64("still_active", m.sup.CountersNow().Active),
		)
	} else {
		m.log.Info("engine disposed", logx.Int("jobs", len(all)), logx.Duration("took", time.Since(start)))
	}
}

// Disposed reports whether Close has run.
func (m *Manager) Disposed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disposed
}

func (m *Manager) publish(typ string, ev JobEvent) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}

func runnableName(r Runnable) string {
	if n, ok := r.(Named); ok {
		if name := strings.TrimSpace(n.Name()); name != "" {
			return name
		}
	}
	t := reflect.TypeOf(r)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "runnable"
	}
	return t.String()
}

// RunnableID derives a stable identity from a runnable's name, so repeated
// discovery of the same runnable dedups via the duplicate-ID check. It is
// exported so callers that registered a runnable can address the resulting
// job (cancel, pause) without holding the TrackedJob.
func RunnableID(name string) string {
	return "runnable:" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func runnableID(name string) string { return RunnableID(name) }
