package domain

// Notification status constants
const (
	NotificationStatusSending = "SENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusSkipped = "SKIPPED"
	NotificationStatusFailed  = "FAILED"
)

// MaxAttempts is how many times one message's email is tried before the
// delivery is dropped
const MaxAttempts = 5

// PreviewLength caps the message excerpt quoted in the email
const PreviewLength = 140
