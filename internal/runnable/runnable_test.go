package runnable

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"jobmill/internal/history"
	"jobmill/internal/job"
	logx "jobmill/pkg/logx"
)

func TestHeartbeatRun(t *testing.T) {
	t.Parallel()
	h := NewHeartbeat(10*time.Second, logx.Nop())

	var gotState string
	h.notify = func(unsetEnv bool, state string) (bool, error) {
		gotState = state
		return true, nil
	}
	if err := h.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotState != "WATCHDOG=1" {
		t.Fatalf("state = %q", gotState)
	}

	// No systemd socket: still succeeds.
	h.notify = func(bool, string) (bool, error) { return false, nil }
	if err := h.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run without socket: %v", err)
	}

	// Notify failure propagates.
	h.notify = func(bool, string) (bool, error) { return false, errors.New("boom") }
	if err := h.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestHeartbeatDefaults(t *testing.T) {
	t.Parallel()
	h := NewHeartbeat(0, logx.Nop())
	if h.Frequency() != 15*time.Second {
		t.Fatalf("default frequency = %v", h.Frequency())
	}
	if h.Name() != "heartbeat" {
		t.Fatalf("name = %q", h.Name())
	}
}

func TestNetProbeDefaults(t *testing.T) {
	t.Parallel()
	p := NewNetProbe(NetProbeConfig{}, logx.Nop())
	if p.Frequency() != time.Hour {
		t.Fatalf("default frequency = %v", p.Frequency())
	}
	if p.cfg.ServerCount != 3 {
		t.Fatalf("default server count = %d", p.cfg.ServerCount)
	}
}

func TestPruneRun(t *testing.T) {
	t.Parallel()
	st, err := history.Open(history.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "history.jsonl"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	old := history.Entry{At: time.Now().Add(-48 * time.Hour), JobID: "a", Name: "a", Event: "job.completed", Status: "completed"}
	fresh := history.Entry{At: time.Now(), JobID: "b", Name: "b", Event: "job.completed", Status: "completed"}
	for _, e := range []history.Entry{old, fresh} {
		if err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	deps := job.ResolverFunc(func(name string) (any, bool) {
		if name == DepHistoryStore {
			return st, true
		}
		return nil, false
	})

	p := NewPrune(time.Hour, 24*time.Hour, logx.Nop())
	if err := p.Run(ctx, deps); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "b" {
		t.Fatalf("unexpected entries after prune: %+v", got)
	}
}

func TestPruneNoStore(t *testing.T) {
	t.Parallel()
	p := NewPrune(time.Hour, 24*time.Hour, logx.Nop())
	deps := job.ResolverFunc(func(string) (any, bool) { return nil, false })
	if err := p.Run(context.Background(), deps); err == nil {
		t.Fatal("expected error when store is missing")
	}
}

func TestPruneZeroRetention(t *testing.T) {
	t.Parallel()
	p := NewPrune(time.Hour, 0, logx.Nop())
	// Retention disabled: no resolver access at all.
	if err := p.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
