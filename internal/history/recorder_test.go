package history

import (
	"context"
	"testing"
	"time"

	"jobmill/internal/eventbus"
	"jobmill/internal/job"
	logx "jobmill/pkg/logx"
)

func TestRecorderPersistsOutcomes(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	bus := eventbus.New()

	r := NewRecorder(st, bus, logx.Nop())
	r.Start(context.Background())
	defer r.Stop()

	bus.Publish(eventbus.Event{
		Type: job.EventStarted, // not an outcome, must be ignored
		Data: job.JobEvent{ID: "probe", Name: "probe", Status: "running"},
	})
	bus.Publish(eventbus.Event{
		Type: job.EventCompleted,
		Data: job.JobEvent{
			ID:             "probe",
			Name:           "probe",
			Status:         "completed",
			ExecutionCount: 3,
			Duration:       42 * time.Millisecond,
		},
	})
	bus.Publish(eventbus.Event{
		Type: job.EventRetry,
		Data: job.JobEvent{
			ID:           "probe",
			Name:         "probe",
			Status:       "failed",
			RetryAttempt: 1,
			Error:        "dial tcp: refused",
		},
	})

	var got []Entry
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		got, err = st.Recent(context.Background(), 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(got) != 2 {
		t.Fatalf("recorded %d entries, want 2: %+v", len(got), got)
	}
	// Newest first: the retry entry, then the completion.
	if got[0].Event != job.EventRetry || got[0].Error != "dial tcp: refused" || got[0].RetryAttempt != 1 {
		t.Fatalf("unexpected retry entry: %+v", got[0])
	}
	if got[1].Event != job.EventCompleted || got[1].ExecutionCount != 3 || got[1].TookMS != 42 {
		t.Fatalf("unexpected completed entry: %+v", got[1])
	}
}

func TestRecorderDisabledStore(t *testing.T) {
	t.Parallel()
	r := NewRecorder(nil, eventbus.New(), logx.Nop())
	r.Start(context.Background())
	r.Stop() // must not block or panic
}
