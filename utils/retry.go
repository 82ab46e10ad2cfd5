package utils

import (
	"time"
)

const (
	// RetryAttempts is how many times a transient side effect is attempted
	RetryAttempts = 3
	// RetryInitialDelay is the delay before the second attempt; it doubles
	// after every failure
	RetryInitialDelay = time.Second
)

// Retry runs fn up to RetryAttempts times with exponential backoff.
// It is meant for side effects like sending mail or publishing events;
// database writes go through transactions instead and must not be
// retried blindly.
func Retry(fn func() error) error {
	return RetryWithBackoff(RetryAttempts, RetryInitialDelay, fn)
}

// RetryWithBackoff runs fn up to attempts times, sleeping delay between
// tries and doubling it each time. The last error is returned when every
// attempt fails.
func RetryWithBackoff(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
