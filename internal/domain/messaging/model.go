package messaging

import (
	"time"

	"github.com/google/uuid"
)

const maxSubjectLen = 200

// Message maps to the messages table.
type Message struct {
	ID          uuid.UUID `db:"id" json:"id"`
	SenderID    uuid.UUID `db:"sender_id" json:"sender_id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Subject     string    `db:"subject" json:"subject"`
	Content     string    `db:"content" json:"content"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	SentAt      time.Time `db:"sent_at" json:"sent_at"`

	SenderName    string `json:"sender_name,omitempty"`
	RecipientName string `json:"recipient_name,omitempty"`
}

type SendRequest struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Subject     string    `json:"subject"`
	Content     string    `json:"content"`
}

// Box selects which side of a conversation to list.
type Box int

const (
	Inbox Box = iota
	Sent
	All
)
