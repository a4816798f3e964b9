package history

import (
	"context"
	"time"

	"jobmill/internal/eventbus"
	"jobmill/internal/job"
	logx "jobmill/pkg/logx"
)

// Recorder subscribes to job lifecycle events and persists execution
// outcomes. It drops nothing the engine needs; a failed write only loses a
// history row.
type Recorder struct {
	log   logx.Logger
	store Store
	bus   eventbus.Bus

	unsub func()
	done  chan struct{}
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{log: log, store: store, bus: bus}
}

// Start begins consuming events. It is a no-op when the store is nil
// (history disabled).
func (r *Recorder) Start(ctx context.Context) {
	if r.store == nil || r.bus == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ch, unsub := r.bus.Subscribe(256)
	r.unsub = unsub
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				r.record(ctx, e)
			}
		}
	}()
}

// Stop unsubscribes and waits for the consumer goroutine to drain.
func (r *Recorder) Stop() {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	if r.done != nil {
		<-r.done
		r.done = nil
	}
}

func (r *Recorder) record(ctx context.Context, e eventbus.Event) {
	switch e.Type {
	case job.EventCompleted, job.EventFailed, job.EventRetry, job.EventExhausted, job.EventCancelled:
	default:
		return
	}
	ev, ok := e.Data.(job.JobEvent)
	if !ok {
		return
	}
	entry := Entry{
		At:             e.Time,
		JobID:          ev.ID,
		Name:           ev.Name,
		Event:          e.Type,
		Status:         ev.Status,
		ExecutionCount: ev.ExecutionCount,
		RetryAttempt:   ev.RetryAttempt,
		TookMS:         ev.Duration.Milliseconds(),
		Error:          ev.Error,
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.store.Append(wctx, entry); err != nil {
		r.log.Debug("history append failed", logx.String("job", ev.ID), logx.Err(err))
	}
}
