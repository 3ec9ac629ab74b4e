package domain

import (
	"github.com/cuongbtq/jobmatch-be/internal/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Recipient is the profile an email goes to
type Recipient struct {
	ID       string `db:"id"`
	Email    string `db:"email"`
	FullName string `db:"full_name"`
	Locale   string `db:"locale"`
}

// NotificationJob is one message event handed to the worker pool
type NotificationJob struct {
	Event    messaging.Event
	Delivery amqp.Delivery
}

// MessageID is the id the job is keyed by
func (j *NotificationJob) MessageID() string {
	return j.Event.Message.ID
}
