package model

import "time"

// AuditEvent is a lifecycle event archived from the event bus.
type AuditEvent struct {
	ID         string    `json:"id" db:"id"`
	Type       string    `json:"type" db:"type"`
	Subject    string    `json:"subject" db:"subject"`
	ActorID    string    `json:"actor_id,omitempty" db:"actor_id"`
	Payload    string    `json:"payload" db:"payload"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}
