package domain

import "time"

// Reminder is a deferred one-shot notification.
// It fires at most once and is removed from the store after firing.
type Reminder struct {
	ID       int64
	FireAt   time.Time
	Message  string
	TargetID string
}
