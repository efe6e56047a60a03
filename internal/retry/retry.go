// Package retry re-runs a unit of work after transient store failures
// (deadlocks, lock timeouts, serialization failures) with exponential backoff.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cx-tal-miterani/flight-inventory/internal/metrics"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTransient marks an error as safe to retry.
var ErrTransient = errors.New("transient failure")

// Postgres SQLSTATEs that indicate lock contention rather than a bad request.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// Policy configures Do. MaxRetries counts retries, so the work runs at most
// MaxRetries+1 times.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy is 3 retries starting at 100ms and doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     2 * time.Second,
	}
}

// Do runs fn, retrying while it fails with a transient error. Non-transient
// errors and exhausted retries return the last error unchanged. A cancelled
// context stops the wait between attempts.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	delay := p.InitialDelay
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) || attempt >= p.MaxRetries {
			return result, err
		}

		metrics.Retries.Inc()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, errors.Join(err, ctx.Err())
		case <-timer.C:
		}

		if p.Multiplier > 0 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// IsTransient reports whether err is lock contention the caller may retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		case codeQueryCanceled:
			return strings.Contains(strings.ToLower(pgErr.Message), "lock timeout")
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not obtain lock") ||
		strings.Contains(msg, "lock timeout")
}
