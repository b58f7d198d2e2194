package models

import "time"

// NotificationStatus is the lifecycle state of an interview reminder.
// PENDING is the only initial and only non-terminal state.
type NotificationStatus string

const (
	StatusPending   NotificationStatus = "PENDING"
	StatusSent      NotificationStatus = "SENT"
	StatusFailed    NotificationStatus = "FAILED"
	StatusCancelled NotificationStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition can leave this status.
func (s NotificationStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Notification is one scheduled interview reminder. Recipient and content
// are snapshots taken at schedule time so later user or application edits
// do not alter an already-scheduled reminder.
type Notification struct {
	ID             string             `json:"id"`
	ApplicationID  string             `json:"applicationId"`
	RecipientEmail string             `json:"recipientEmail"`
	Subject        string             `json:"subject"`
	Body           string             `json:"body"`
	ScheduledTime  time.Time          `json:"scheduledTime"`
	Status         NotificationStatus `json:"status"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}
