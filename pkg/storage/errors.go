package storage

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a failure to reach a storage server that is worth
// another attempt, such as a refused connection or a ping timeout while
// the server is still starting.
type RetryableError struct{ Err error }

// Retryable marks err as transient. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether any error in err's chain was marked with
// Retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// dialAttempts and retryDelay bound how long an engine waits for its
// server. Tests shorten retryDelay.
const dialAttempts = 3

var retryDelay = time.Second

// RetryWithBackoff runs dial until it succeeds, returns an error not marked
// Retryable, or has failed dialAttempts times. The wait between attempts
// starts at retryDelay and doubles. The postgres, redis and mongo engines
// wrap their connect-and-ping step in it.
func RetryWithBackoff(ctx context.Context, dial func() error) error {
	wait := retryDelay
	for attempt := 1; ; attempt++ {
		err := dial()
		if err == nil || !IsRetryable(err) || attempt == dialAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}
