package job

import (
	"fmt"
	"time"
)

// Bounds is the engine-wide allowed range for job intervals.
type Bounds struct {
	Min time.Duration
	Max time.Duration
}

// Validate rejects non-positive or inverted bounds. It runs once at engine
// construction; Clamp assumes a valid receiver.
func (b Bounds) Validate() error {
	if b.Min <= 0 {
		return fmt.Errorf("min interval must be positive, got %v", b.Min)
	}
	if b.Max <= 0 {
		return fmt.Errorf("max interval must be positive, got %v", b.Max)
	}
	if b.Min > b.Max {
		return fmt.Errorf("min interval %v exceeds max interval %v", b.Min, b.Max)
	}
	return nil
}

// Clamp silently pulls d into [Min, Max].
func (b Bounds) Clamp(d time.Duration) time.Duration {
	if d < b.Min {
		return b.Min
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
