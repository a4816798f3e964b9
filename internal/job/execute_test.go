package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"jobmill/internal/eventbus"
	logx "jobmill/pkg/logx"
)

func TestCronSpecSchedulesFiring(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	var runs atomic.Int32
	ok := m.CreateTrackedJob(Definition{
		ID:       "cronish",
		CronSpec: "@every 30ms",
		Callable: func(context.Context, Resolver) error {
			runs.Add(1)
			return nil
		},
	})
	if !ok {
		t.Fatal("registration failed")
	}

	got, ok := m.GetJob("cronish")
	if !ok {
		t.Fatal("GetJob")
	}
	if got.CronSpec != "@every 30ms" {
		t.Fatalf("CronSpec = %q", got.CronSpec)
	}
	if got.NextExecutionAt.IsZero() {
		t.Fatal("cron job has no scheduled firing")
	}

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 2 })
}

func TestSecondsCronFieldAccepted(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	// 6-field spec with a seconds field.
	if !m.CreateTrackedJob(Definition{ID: "six", CronSpec: "*/5 * * * * *", Callable: noop}) {
		t.Fatal("6-field cron spec rejected")
	}
	// Plain 5-field spec.
	if !m.CreateTrackedJob(Definition{ID: "five", CronSpec: "*/5 * * * *", Callable: noop}) {
		t.Fatal("5-field cron spec rejected")
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	m, err := New(testConfig(), nil, logx.Nop(), bus)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close(context.Background()) })

	ch, unsub := bus.Subscribe(64)
	defer unsub()

	var runs atomic.Int32
	ok := m.CreateTrackedJob(Definition{
		ID:               "observed",
		Interval:         10 * time.Millisecond,
		AutoRestart:      true,
		MaxRetryAttempts: 1,
		Callable: func(context.Context, Resolver) error {
			if runs.Add(1) == 1 {
				return errors.New("first one fails")
			}
			return nil
		},
	})
	if !ok {
		t.Fatal("registration failed")
	}

	want := map[string]bool{
		EventCreated:   false,
		EventStarted:   false,
		EventRetry:     false,
		EventCompleted: false,
	}
	deadline := time.After(2 * time.Second)
	for {
		remaining := 0
		for _, seen := range want {
			if !seen {
				remaining++
			}
		}
		if remaining == 0 {
			break
		}
		select {
		case e := <-ch:
			if _, tracked := want[e.Type]; tracked {
				want[e.Type] = true
			}
			if ev, ok := e.Data.(JobEvent); ok && ev.ID != "observed" {
				t.Fatalf("event for unexpected job %q", ev.ID)
			}
		case <-deadline:
			t.Fatalf("missing events: %+v", want)
		}
	}
}

func TestExhaustedEventCarriesError(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	m, err := New(testConfig(), nil, logx.Nop(), bus)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close(context.Background()) })

	ch, unsub := bus.Subscribe(64)
	defer unsub()

	ok := m.CreateTrackedJob(Definition{
		ID:               "dying",
		Interval:         10 * time.Millisecond,
		AutoRestart:      false,
		MaxRetryAttempts: -1,
		Callable: func(context.Context, Resolver) error {
			return errors.New("permanent")
		},
	})
	if !ok {
		t.Fatal("registration failed")
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type != EventExhausted {
				continue
			}
			ev, ok := e.Data.(JobEvent)
			if !ok {
				t.Fatalf("unexpected payload %T", e.Data)
			}
			if ev.Error == "" || ev.Status != StatusExhausted.String() {
				t.Fatalf("exhausted event incomplete: %+v", ev)
			}
			return
		case <-deadline:
			t.Fatal("no exhausted event")
		}
	}
}

func TestResolverIsHandedToCallables(t *testing.T) {
	t.Parallel()
	deps := ResolverFunc(func(name string) (any, bool) {
		if name == "answer" {
			return 42, true
		}
		return nil, false
	})
	m, err := New(testConfig(), deps, logx.Nop(), eventbus.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close(context.Background()) })

	got := make(chan int, 1)
	ok := m.CreateDynamicJob("resolve", "", 10*time.Millisecond, func(_ context.Context, r Resolver) error {
		if r == nil {
			t.Error("nil resolver")
			return nil
		}
		if v, found := r.Resolve("answer"); found {
			select {
			case got <- v.(int):
			default:
			}
		}
		return nil
	})
	if !ok {
		t.Fatal("registration failed")
	}

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("resolved %d, want 42", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callable never resolved its dependency")
	}
}

func TestSerializedExecutionPerJob(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	var inFlight atomic.Int32
	var overlapped atomic.Bool
	var runs atomic.Int32
	ok := m.CreateDynamicJob("serial", "", 10*time.Millisecond, func(context.Context, Resolver) error {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(15 * time.Millisecond)
		inFlight.Add(-1)
		runs.Add(1)
		return nil
	})
	if !ok {
		t.Fatal("registration failed")
	}

	waitFor(t, 3*time.Second, func() bool { return runs.Load() >= 4 })
	if overlapped.Load() {
		t.Fatal("two executions of the same job overlapped")
	}
}
