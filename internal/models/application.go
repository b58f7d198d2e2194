package models

import "time"

// Application is the read-only view of a job application as seen by the
// reminder subsystem. The CRUD layer owns the full entity; this core only
// needs the fields that drive scheduling and the delivery-time re-check.
type Application struct {
	ID                   string     `json:"id"`
	CompanyName          string     `json:"companyName"`
	Position             string     `json:"position"`
	CompanyLink          string     `json:"companyLink,omitempty"`
	InterviewTime        *time.Time `json:"interviewTime,omitempty"`
	NotificationsEnabled bool       `json:"notificationsEnabled"`
	OwnerEmail           string     `json:"ownerEmail"`
	OwnerPhone           string     `json:"ownerPhone,omitempty"`
}
