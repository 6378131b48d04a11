// Package retry runs a fallible operation a bounded number of times with a
// fixed delay between attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	// Attempts is the total number of invocations, including the first.
	// Values below 1 are treated as 1.
	Attempts int

	// Delay is the fixed wait between a failed attempt and the next one.
	Delay time.Duration

	// OnRetry, if set, is called after each failed attempt that will be
	// retried.
	OnRetry func(attempt int, err error)
}

// Do invokes op until it succeeds, returns a permanent error, or the policy's
// attempts are exhausted. On exhaustion the last error is returned. If ctx is
// cancelled while waiting between attempts, the last error is returned joined
// with ctx.Err().
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= attempts {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it immediately without retrying.
// Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
