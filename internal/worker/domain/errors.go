package domain

import "errors"

var (
	// ErrRecipientNotFound is returned when the recipient has no profile row
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrAlreadyNotified is returned when the notification for a message
	// reached a final state (sent or skipped)
	ErrAlreadyNotified = errors.New("notification already handled")

	// ErrNotificationInFlight is returned when another worker holds a live
	// claim. The delivery is requeued so it can take over if that worker dies.
	ErrNotificationInFlight = errors.New("notification is being sent by another worker")

	// ErrInvalidPayload is returned when an event body is malformed
	ErrInvalidPayload = errors.New("invalid event payload")

	// ErrMaxRetriesExceeded is returned when a notification has used up its attempts
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
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
