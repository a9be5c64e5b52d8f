// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"time"
)

// Policy describes a bounded retry loop with exponential backoff. The
// zero value is usable: 3 attempts, 1 s base delay, transient errors only.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first
	// (default 3).
	MaxAttempts int

	// BaseDelay is the wait after the first failure; it doubles each
	// subsequent attempt (default 1 s).
	BaseDelay time.Duration

	// Retryable decides whether an error is worth another attempt
	// (default IsTransient). A permanent error returns immediately.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned on exhaustion.
// A context cancelled during a backoff wait returns ctx.Err().
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}
