package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"
)

const (
	defaultRetryAttempts = 3
	retryBackoff         = 50 * time.Millisecond
)

// isTransient reports storage faults worth retrying: dropped connections,
// network timeouts and sqlite writer contention.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "database is locked")
}

// retryIdempotent runs fn until it succeeds, fails with a non-transient
// error, or attempts run out. Only idempotent operations may use it.
func retryIdempotent(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(retryBackoff * time.Duration(i+1)):
		}
	}
	return err
}
