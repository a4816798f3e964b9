package job

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "jobmill/pkg/logx"
)

// scheduleLocked creates the job's next scheduling handle. Call with j.mu
// held. Bumping ver first guarantees at most one live handle: any previously
// created timer that still fires sees a stale version and does nothing.
func (m *Manager) scheduleLocked(j *trackedJob, delay time.Duration, retry bool) {
	if delay < 0 {
		delay = 0
	}
	if j.timer != nil {
		_ = j.timer.Stop()
	}
	j.ver++
	ver := j.ver
	j.rec.NextExecutionAt = time.Now().Add(delay)
	id := j.rec.ID
	j.timer = time.AfterFunc(delay, func() {
		// The execution runs under the supervisor so Close can drain it.
		m.sup.Go("job."+id, func(context.Context) error {
			m.fire(j, ver, retry)
			return nil
		})
	})
}

// stopTimerLocked invalidates the outstanding scheduling handle (if any).
// Call with j.mu held.
func (m *Manager) stopTimerLocked(j *trackedJob) {
	j.ver++
	if j.timer != nil {
		_ = j.timer.Stop()
		j.timer = nil
	}
}

// nextDelay computes the wait before the job's next firing: the cron
// schedule when one is set, the clamped interval otherwise.
func (m *Manager) nextDelay(j *trackedJob, now time.Time) time.Duration {
	if j.sched != nil {
		next := j.sched.Next(now.In(m.loc))
		if !next.IsZero() {
			if d := next.Sub(now); d > 0 {
				return d
			}
			return 0
		}
		// Spec never activates again; fall back to the interval.
	}
	return j.rec.Interval
}

// fire runs one attempt of the job's cycle. ver is the scheduling-handle
// version this firing was created under; a mismatch means the handle was
// replaced or dropped (pause, cancel, reschedule) after the timer elapsed.
func (m *Manager) fire(j *trackedJob, ver uint64, retry bool) {
	j.mu.Lock()
	if ver != j.ver || j.ctx.Err() != nil || j.rec.Status.Terminal() || j.rec.Status == StatusPaused {
		j.mu.Unlock()
		return
	}
	start := time.Now()
	j.rec.Status = StatusRunning
	j.rec.LastExecutedAt = start
	j.rec.UpdatedAt = start
	j.rec.ExecutionCount++
	if !retry {
		// Fresh cycle: the retry counter and last error belong to the
		// previous cycle.
		j.rec.CurrentRetryAttempt = 0
		j.rec.LastError = ""
	}
	id := j.rec.ID
	name := j.rec.Name
	count := j.rec.ExecutionCount
	attempt := j.rec.CurrentRetryAttempt
	fn := j.callable
	ctx := j.ctx
	j.mu.Unlock()

	m.publish(EventStarted, JobEvent{ID: id, Name: name, Status: StatusRunning.String(), ExecutionCount: count, RetryAttempt: attempt})
	m.log.Debug("job started", logx.String("id", id), logx.String("name", name), logx.Uint64("execution", count), logx.Bool("retry", retry))

	err := m.runCallable(ctx, id, fn)
	dur := time.Since(start)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ctx.Err() != nil {
		// Cancellation observed during execution. Never counted against the
		// retry budget, never rescheduled.
		if !j.rec.Status.Terminal() {
			j.rec.Status = StatusCancelled
			j.rec.UpdatedAt = time.Now()
			j.rec.NextExecutionAt = time.Time{}
		}
		m.log.Debug("job observed cancellation", logx.String("id", id), logx.String("name", name), logx.Duration("dur", dur))
		return
	}

	paused := j.rec.Status == StatusPaused

	if err == nil {
		j.rec.LastError = ""
		j.rec.UpdatedAt = time.Now()
		ev := JobEvent{ID: id, Name: name, Status: StatusCompleted.String(), ExecutionCount: count, RetryAttempt: attempt, Duration: dur}
		if paused {
			// Paused mid-run: record the outcome but schedule nothing.
			// ResumeJob starts the next cycle.
			m.publish(EventCompleted, ev)
			return
		}
		j.rec.Status = StatusCompleted
		m.scheduleLocked(j, m.nextDelay(j, time.Now()), false)
		// Completed settles back to Pending once the next handle exists.
		j.rec.Status = StatusPending
		m.publish(EventCompleted, ev)
		m.log.Debug("job completed", logx.String("id", id), logx.String("name", name), logx.Duration("dur", dur), logx.Time("next", j.rec.NextExecutionAt))
		return
	}

	j.rec.LastError = err.Error()
	j.rec.CurrentRetryAttempt++
	j.rec.UpdatedAt = time.Now()
	newAttempt := j.rec.CurrentRetryAttempt
	ev := JobEvent{ID: id, Name: name, Status: StatusFailed.String(), ExecutionCount: count, RetryAttempt: newAttempt, Duration: dur, Error: err.Error()}

	if paused {
		m.publish(EventFailed, ev)
		m.warnFailure("job failed while paused", id, name, newAttempt, dur, err)
		return
	}

	j.rec.Status = StatusFailed

	if j.rec.AutoRestart && newAttempt <= j.rec.MaxRetryAttempts {
		delay := m.retry.Delay(newAttempt)
		// The record stays Failed while the backoff handle is pending; the
		// retry firing moves it back through Running.
		m.scheduleLocked(j, delay, true)
		ev.NextDelay = delay
		m.publish(EventRetry, ev)
		m.warnFailure("job failed; retry scheduled", id, name, newAttempt, dur, err)
		return
	}

	// Budget spent (or retries disallowed): terminal.
	j.rec.Status = StatusExhausted
	j.rec.NextExecutionAt = time.Time{}
	ev.Status = StatusExhausted.String()
	m.publish(EventExhausted, ev)
	m.log.Error("job retry budget exhausted",
		logx.String("id", id),
		logx.String("name", name),
		logx.Int("attempts", newAttempt),
		logx.Uint64("executions", count),
		logx.Err(err),
	)
}

// runCallable executes the job body, converting panics into errors so one
// bad job cannot take the engine down.
func (m *Manager) runCallable(ctx context.Context, id string, fn Callable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			m.log.Error("job panicked", logx.String("id", id), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return fn(ctx, m.deps)
}

func (m *Manager) warnFailure(msg, id, name string, attempt int, dur time.Duration, err error) {
	f := []logx.Field{
		logx.String("id", id),
		logx.String("name", name),
		logx.Int("attempt", attempt),
		logx.Duration("dur", dur),
		logx.Err(err),
	}
	if m.failWarn.Allow() {
		m.log.Warn(msg, f...)
		return
	}
	m.log.Debug(msg, f...)
}
