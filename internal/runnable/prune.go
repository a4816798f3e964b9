package runnable

import (
	"context"
	"errors"
	"time"

	"jobmill/internal/history"
	"jobmill/internal/job"
	logx "jobmill/pkg/logx"
)

// DepHistoryStore is the resolver key under which the daemon exposes the
// history store to jobs.
const DepHistoryStore = "history.store"

// Prune drops history entries older than the configured retention. It pulls
// the store through the dependency resolver rather than holding a reference,
// so the same job definition works wherever a store is wired in.
type Prune struct {
	log       logx.Logger
	interval  time.Duration
	retention time.Duration
}

func NewPrune(interval, retention time.Duration, log logx.Logger) *Prune {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Prune{log: log, interval: interval, retention: retention}
}

func (p *Prune) Name() string             { return "prune" }
func (p *Prune) Frequency() time.Duration { return p.interval }

func (p *Prune) Run(ctx context.Context, deps job.Resolver) error {
	if p.retention <= 0 {
		// Keep everything.
		return nil
	}
	v, ok := deps.Resolve(DepHistoryStore)
	if !ok {
		return errors.New("history store not available")
	}
	store, ok := v.(history.Store)
	if !ok {
		return errors.New("history store has unexpected type")
	}

	cutoff := time.Now().Add(-p.retention)
	dropped, err := store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	if dropped > 0 {
		p.log.Info("pruned execution history",
			logx.Int("dropped", dropped),
			logx.Time("cutoff", cutoff),
		)
	}
	return nil
}
