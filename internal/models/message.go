package models

import "time"

// Message is a direct note from one user to another.
type Message struct {
	ID          int64     `db:"id" json:"id"`
	SenderID    string    `db:"sender_id" json:"senderId"`
	RecipientID string    `db:"recipient_id" json:"recipientId"`
	Subject     string    `db:"subject" json:"subject"`
	Body        string    `db:"body" json:"message"`
	IsRead      bool      `db:"is_read" json:"isRead"`
	SentAt      time.Time `db:"sent_at" json:"sentAt"`
}

// MessageFilter scopes an inbox listing.
type MessageFilter struct {
	RecipientID string
	UnreadOnly  bool
}
