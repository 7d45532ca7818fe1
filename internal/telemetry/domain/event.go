package domain

import "time"

// EventType names an auth lifecycle event.
type EventType string

const (
	EventSignUp             EventType = "auth.sign_up"
	EventEmailVerified      EventType = "auth.email_verified"
	EventVerificationResent EventType = "auth.verification_resent"
	EventSignIn             EventType = "auth.sign_in"
	EventSignInFailed       EventType = "auth.sign_in_failed"
	EventRefresh            EventType = "auth.refresh"
	EventRefreshRejected    EventType = "auth.refresh_rejected"
	EventSignOut            EventType = "auth.sign_out"
	EventResetRequested     EventType = "auth.reset_requested"
	EventPasswordReset      EventType = "auth.password_reset"
)

// AuthEvent is a single auth lifecycle event published to the event bus and OTel logs.
// It never carries raw tokens or passwords.
type AuthEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"eventType"`
	UserID     string    `json:"userId,omitempty"`
	IP         string    `json:"ip,omitempty"`
	Metadata   []byte    `json:"metadata,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
