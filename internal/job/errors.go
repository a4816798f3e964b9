package job

import "errors"

// Registration and lifecycle-control failures are reported to callers as a
// bool; these sentinels exist so the rejection reason can be logged and
// asserted in tests.
var (
	ErrDisposed        = errors.New("engine disposed")
	ErrMissingID       = errors.New("job id is required")
	ErrMissingCallable = errors.New("job callable is required")
	ErrDuplicateID     = errors.New("job id already registered")
	ErrUnknownJob      = errors.New("unknown job id")
	ErrNotPaused       = errors.New("job is not paused")
	ErrBadCronSpec     = errors.New("invalid cron spec")
)
