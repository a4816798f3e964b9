package backoff

import (
	"testing"
	"time"
)

func TestExponentialDelays(t *testing.T) {
	t.Parallel()
	e := NewExponential(5*time.Second, 300*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 10 * time.Second},
		{attempt: 2, want: 20 * time.Second},
		{attempt: 3, want: 40 * time.Second},
		{attempt: 4, want: 80 * time.Second},
		{attempt: 5, want: 160 * time.Second},
		{attempt: 6, want: 300 * time.Second}, // capped (would be 320s)
		{attempt: 12, want: 300 * time.Second},
		// Out-of-range attempts clamp to the first retry.
		{attempt: 0, want: 10 * time.Second},
		{attempt: -3, want: 10 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Fatalf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialDefaults(t *testing.T) {
	t.Parallel()
	e := NewExponential(0, 0)
	if e.Base != DefaultBase || e.Max != DefaultMax {
		t.Fatalf("defaults not applied: base=%v max=%v", e.Base, e.Max)
	}
}

func TestExponentialLargeAttemptDoesNotOverflow(t *testing.T) {
	t.Parallel()
	e := NewExponential(5*time.Second, 300*time.Second)
	if got := e.Delay(200); got != 300*time.Second {
		t.Fatalf("Delay(200) = %v, want cap", got)
	}
}

func TestConstant(t *testing.T) {
	t.Parallel()
	c := NewConstant(7 * time.Second)
	for _, n := range []int{1, 2, 50} {
		if got := c.Delay(n); got != 7*time.Second {
			t.Fatalf("Delay(%d) = %v, want 7s", n, got)
		}
	}
}

func TestExponentialWithJitterBounds(t *testing.T) {
	t.Parallel()
	j := NewExponentialWithJitter(5*time.Second, 300*time.Second)
	for i := 0; i < 100; i++ {
		d := j.Delay(3)
		if d < 0 || d > 40*time.Second {
			t.Fatalf("jittered delay %v outside [0, 40s]", d)
		}
	}
}
