package alert

import "errors"

// Domain errors for the alert package.
var (
	// ErrEventNotFound is returned when an alert event ID does not exist.
	ErrEventNotFound = errors.New("alert: event not found")

	// ErrSubscriptionExists is returned when a chat ID is already subscribed.
	ErrSubscriptionExists = errors.New("alert: subscription already exists")
)
