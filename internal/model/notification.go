package model

import "time"

// Notification is an append-only message for a single recipient.
type Notification struct {
	ID          string    `json:"id" db:"id"`
	RecipientID string    `json:"recipient_id" db:"recipient_id"`
	Message     string    `json:"message" db:"message"`
	Type        string    `json:"type" db:"type"`
	Read        bool      `json:"is_read" db:"is_read"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Notification types.
const (
	NotifyRequestCreated  = "request_created"
	NotifyRequestApproved = "request_approved"
	NotifyRequestDenied   = "request_denied"
	NotifyRequestReturned = "request_returned"
	NotifyChatMessage     = "chat_message"
	NotifyReportUpdated   = "report_updated"
)

// Feed is a recipient's most recent notifications plus their unread total.
type Feed struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
}
