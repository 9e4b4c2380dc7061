package worker

import "errors"

var (
	// ErrInvalidPayload is returned when a queue message is malformed or
	// names a run that does not exist
	ErrInvalidPayload = errors.New("invalid run payload")

	// ErrMaxRetriesExceeded is returned when a run has exceeded its retry limit
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrDeliveriesClosed is returned by Start when the broker closes the
	// delivery channel
	ErrDeliveriesClosed = errors.New("delivery channel closed")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
