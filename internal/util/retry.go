// Package util provides shared utility functions for scmfs.
package util

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"scmfs/internal/common"
)

// LockRetryOptions returns retry options for waiting on the overlay
// mount lock. Uses backoff (250ms, 500ms, ...) capped at 2s, retrying
// only while another process holds the lock.
func LockRetryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(30),
		retry.Delay(250 * time.Millisecond),
		retry.MaxDelay(2 * time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsLockHeld),
		retry.Context(ctx),
	}
}

// DefaultRetryOptions returns sensible defaults for retry operations.
func DefaultRetryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(1 * time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	}
}

// Retry executes fn with retry logic.
// If all attempts fail, the returned error collects the error of every
// attempt (only the last one when opts include retry.LastErrorOnly).
func Retry(ctx context.Context, fn func() error, opts ...retry.Option) error {
	if len(opts) == 0 {
		opts = DefaultRetryOptions(ctx)
	}
	return retry.Do(fn, opts...)
}

// RetryWithResult executes fn with retry logic and returns the result.
func RetryWithResult[T any](ctx context.Context, fn func() (T, error), opts ...retry.Option) (T, error) {
	if len(opts) == 0 {
		opts = DefaultRetryOptions(ctx)
	}
	return retry.DoWithData(fn, opts...)
}

// IsLockHeld returns true if the error indicates the overlay mount lock
// is held by another process.
func IsLockHeld(err error) bool {
	return errors.Is(err, common.ErrAlreadyOpen)
}
