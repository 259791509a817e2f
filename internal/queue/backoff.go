package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// maxBackoff caps the retry delay however large the attempt count grows.
const maxBackoff = 5 * time.Minute

// CalculateBackoffDelay returns the delay before retrying after the given
// attempt (1-indexed): base, 2*base, 4*base and so on.
func CalculateBackoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// Decision is the outcome of one processing attempt.
type Decision struct {
	State     State
	Delay     time.Duration // before re-admission, when State is StateRetryScheduled
	LastError string
}

// Decide determines what happens to a job after an attempt. attempts counts
// the attempt that just finished.
func Decide(err error, attempts, maxAttempts int, base time.Duration) Decision {
	if err == nil {
		return Decision{State: StateCompleted}
	}

	if !Retryable(err) {
		return Decision{
			State:     StateFailed,
			LastError: fmt.Sprintf("permanent error: %v", err),
		}
	}

	if attempts >= maxAttempts {
		return Decision{
			State:     StateFailed,
			LastError: fmt.Sprintf("max attempts reached: %v", err),
		}
	}

	return Decision{
		State:     StateRetryScheduled,
		Delay:     CalculateBackoffDelay(base, attempts),
		LastError: err.Error(),
	}
}

// TransientError marks a failure worth retrying: a dropped connection, a lock
// timeout, an unavailable object store.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err, or anything it wraps, is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// Retryable reports whether a failed attempt may be retried. Timeouts count
// as transient even when the handler did not say so.
func Retryable(err error) bool {
	return IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}
