package models

import "time"

// Auth event types published to the audit stream. The specific denial cause
// lives only here and in logs; the HTTP surface stays generic.
const (
	EventSessionGranted   = "session_granted"
	EventChallengeIssued  = "challenge_issued"
	EventAccessDenied     = "access_denied"
	EventCustomizationSet = "customization_set"
)

// AuthEvent is one entry in the internal audit trail.
type AuthEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ResourceID int       `json:"resource_id"`
	Method     string    `json:"method,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Email      string    `json:"email,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
