package syncer

import (
	"context"
	"fmt"
	"time"
)

// Backoff is an exponential retry policy with a ceiling.
type Backoff struct {
	Base        time.Duration
	Ceiling     time.Duration
	MaxAttempts int
}

// DefaultBackoff matches the delivery-retry cadence of upstream webhook senders.
var DefaultBackoff = Backoff{
	Base:        500 * time.Millisecond,
	Ceiling:     30 * time.Second,
	MaxAttempts: 5,
}

// Delay returns the pause before the given retry attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base << (attempt - 1)
	if d > b.Ceiling || d <= 0 {
		d = b.Ceiling
	}
	return d
}

// Wait sleeps for the attempt's delay or returns early when ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(b.Delay(attempt))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
