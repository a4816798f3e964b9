// Package backoff provides retry delay strategies for failing jobs.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultBase is the base delay for the default exponential strategy.
	DefaultBase = 5 * time.Second
	// DefaultMax caps any computed delay.
	DefaultMax = 300 * time.Second
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(_ int) time.Duration { return c.Interval }

// Exponential doubles the delay each attempt.
// Delay = min(2^attempt * Base, Max), so attempt 1 already waits 2*Base.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy.
// Non-positive base/max fall back to the package defaults.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	if base <= 0 {
		base = DefaultBase
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMax
	}
	return &Exponential{Base: base, Max: maxDelay}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := e.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if e.Max > 0 && d >= e.Max {
			return e.Max
		}
	}
	return d
}

// ExponentialWithJitter applies full jitter to an exponential base:
// a random delay in [0, min(2^attempt * Base, Max)].
//
// Not the default because it makes retry timing nondeterministic; useful when
// many independent jobs can fail at once against the same downstream
// dependency.
type ExponentialWithJitter struct {
	Base time.Duration
	Max  time.Duration
}

func NewExponentialWithJitter(base, maxDelay time.Duration) *ExponentialWithJitter {
	if base <= 0 {
		base = DefaultBase
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMax
	}
	return &ExponentialWithJitter{Base: base, Max: maxDelay}
}

func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	upper := (&Exponential{Base: e.Base, Max: e.Max}).Delay(attempt)
	if upper <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(upper) + 1))
}
