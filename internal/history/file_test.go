package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "jobmill/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "history.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st == nil {
		t.Fatal("store is nil")
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileAppendRecent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		e := Entry{
			At:             base.Add(time.Duration(i) * time.Minute),
			JobID:          "cleanup",
			Name:           "cleanup",
			Event:          "job.completed",
			Status:         "completed",
			ExecutionCount: uint64(i + 1),
		}
		if err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := st.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Newest first.
	if got[0].ExecutionCount != 5 || got[2].ExecutionCount != 3 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestFilePrune(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now()
	for _, at := range []time.Time{old, old.Add(time.Minute), fresh} {
		if err := st.Append(ctx, Entry{At: at, JobID: "j", Name: "j", Event: "job.completed", Status: "completed"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	dropped, err := st.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	// The store keeps working after a prune rewrite.
	if err := st.Append(ctx, Entry{JobID: "j", Name: "j", Event: "job.completed", Status: "completed"}); err != nil {
		t.Fatalf("Append after prune: %v", err)
	}
}

func TestFilePruneNothingToDrop(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.Append(ctx, Entry{JobID: "j", Name: "j", Event: "job.completed", Status: "completed"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	dropped, err := st.Prune(ctx, time.Now().Add(-time.Hour))
	if err != nil || dropped != 0 {
		t.Fatalf("Prune = %d, %v; want 0, nil", dropped, err)
	}
}
