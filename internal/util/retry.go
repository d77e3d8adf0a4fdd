// Package util provides process, polling and retry primitives for mountcheck.
package util

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"
)

// lockedMarkers are the driver messages for a database held by another
// writer, such as a second mountcheck run recording at the same moment.
var lockedMarkers = []string{
	"database is locked",
	"database table is locked",
	"SQLITE_BUSY",
}

// IsDatabaseLocked reports whether err means another connection holds the
// database lock.
func IsDatabaseLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range lockedMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// DatabaseRetryOptions retries only lock contention, three times with
// backoff from 100ms capped at 300ms. op names the operation in the log.
func DatabaseRetryOptions(ctx context.Context, op string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(300 * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsDatabaseLocked),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Debugf("[HISTORY] %s: database locked, retrying (attempt %d): %v", op, n+1, err)
		}),
	}
}

// RetryLocked runs fn, retrying while the database is locked.
func RetryLocked(ctx context.Context, op string, fn func() error) error {
	return retry.Do(fn, DatabaseRetryOptions(ctx, op)...)
}

// RetryLockedWithResult is RetryLocked for operations that return a value.
func RetryLockedWithResult[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn, DatabaseRetryOptions(ctx, op)...)
}
