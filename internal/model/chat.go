package model

import "time"

// Conversation is a chat thread about one item between its owner and a borrower.
type Conversation struct {
	ID          string    `json:"id" db:"id"`
	ItemID      string    `json:"item_id" db:"item_id"`
	ItemTitle   string    `json:"item_title" db:"item_title"`
	ItemOwnerID string    `json:"item_owner_id" db:"item_owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ChatMessage is a single message within a conversation.
type ChatMessage struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SenderID       string    `json:"sender_id" db:"sender_id"`
	Content        string    `json:"content" db:"content"`
	Read           bool      `json:"is_read" db:"is_read"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ChatHead summarizes a conversation for the conversation list.
type ChatHead struct {
	ConversationID string     `json:"conversation_id"`
	ItemID         string     `json:"item_id"`
	ItemTitle      string     `json:"item_title"`
	OtherID        string     `json:"other_id"`
	OtherName      string     `json:"other_name"`
	LastMessage    string     `json:"last_message,omitempty"`
	LastAt         *time.Time `json:"last_at,omitempty"`
	UnreadCount    int        `json:"unread_count"`
	OtherContact   *Contact   `json:"other_contact,omitempty"`
}
