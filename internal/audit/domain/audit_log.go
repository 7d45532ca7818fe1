package domain

import "time"

// AuditLog is one recorded auth event for a user. UserID is empty when the actor is unknown
// (e.g. a sign-in attempt for an unregistered email).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
