package runnable

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"jobmill/internal/job"
	logx "jobmill/pkg/logx"
)

// Heartbeat pings the systemd watchdog on every cycle. When the process is
// not supervised by systemd the ping is a no-op and the job still succeeds,
// so the same config works in and out of a unit file.
type Heartbeat struct {
	log      logx.Logger
	interval time.Duration

	// notify is daemon.SdNotify unless swapped in tests.
	notify func(unsetEnv bool, state string) (bool, error)
}

// WatchdogInterval reports the ping interval systemd expects, or 0 when no
// watchdog is configured. Callers should schedule the heartbeat at half the
// reported interval.
func WatchdogInterval() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

func NewHeartbeat(interval time.Duration, log logx.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Heartbeat{
		log:      log,
		interval: interval,
		notify:   daemon.SdNotify,
	}
}

func (h *Heartbeat) Name() string             { return "heartbeat" }
func (h *Heartbeat) Frequency() time.Duration { return h.interval }

func (h *Heartbeat) Run(_ context.Context, _ job.Resolver) error {
	ack, err := h.notify(false, daemon.SdNotifyWatchdog)
	if err != nil {
		return err
	}
	if !ack {
		// Not running under systemd; nothing to ping.
		h.log.Trace("watchdog notify skipped (no systemd socket)")
	}
	return nil
}
