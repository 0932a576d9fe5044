package retry

import (
	"context"
)

// Report describes the outcome of WithFallback.
type Report struct {
	Attempts int
	Err      error
	// Spilled is true when the fallback ran.
	Spilled  bool
	SpillErr error
}

// OK reports whether the primary call succeeded.
func (r Report) OK() bool {
	return r.Err == nil
}

// WithFallback runs send under Do and, if it never succeeds, hands the value
// to spill. A spill failure is recorded in the report and is not retried.
func WithFallback[T any](
	ctx context.Context,
	cfg Config,
	value T,
	send func(ctx context.Context, value T) error,
	spill func(value T) error,
) Report {
	attempts, err := Do(ctx, cfg, func(ctx context.Context) error {
		return send(ctx, value)
	})
	r := Report{Attempts: attempts, Err: err}
	if err == nil || spill == nil {
		return r
	}
	r.Spilled = true
	r.SpillErr = spill(value)
	return r
}
