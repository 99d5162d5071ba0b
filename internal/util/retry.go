// Package util provides shared utility functions for drivefs.
package util

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dgraph-io/badger/v4"
)

// backoff builds exponential backoff options. Only the last error is
// returned so callers can match it with errors.Is.
func backoff(ctx context.Context, attempts uint, delay, maxDelay time.Duration, retryIf retry.RetryIfFunc) []retry.Option {
	opts := []retry.Option{
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
	if retryIf != nil {
		opts = append(opts, retry.RetryIf(retryIf))
	}
	return opts
}

// DatabaseRetryOptions retries SQLite writes that hit a lock held by another
// connection (100ms, 200ms, 300ms).
func DatabaseRetryOptions(ctx context.Context) []retry.Option {
	return backoff(ctx, 3, 100*time.Millisecond, 300*time.Millisecond, IsDatabaseLocked)
}

// KVRetryOptions retries Badger transactions that lost a conflict.
func KVRetryOptions(ctx context.Context) []retry.Option {
	return backoff(ctx, 5, 10*time.Millisecond, 200*time.Millisecond, IsTransactionConflict)
}

// DefaultRetryOptions retries any error.
func DefaultRetryOptions(ctx context.Context) []retry.Option {
	return backoff(ctx, 3, 100*time.Millisecond, time.Second, nil)
}

// Retry executes fn with retry logic.
// Returns the last error if all attempts fail.
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

// IsDatabaseLocked reports whether err is a SQLite busy/locked error. libsql
// only exposes these as message text.
func IsDatabaseLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// IsTransactionConflict reports whether err is a Badger write conflict that
// succeeds when replayed.
func IsTransactionConflict(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}
