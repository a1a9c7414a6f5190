package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smartpass-api/internal/models"
)

const messageColumns = `id, sender_id, recipient_id, subject, body, is_read, sent_at`

// MessageRepository persists direct messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores an unread message and fills its id.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	const query = `INSERT INTO messages (sender_id, recipient_id, subject, body, is_read, sent_at)
VALUES ($1, $2, $3, $4, FALSE, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &msg.ID, query, msg.SenderID, msg.RecipientID, msg.Subject, msg.Body, msg.SentAt); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	msg.IsRead = false
	return nil
}

// ListForRecipient returns a recipient's messages newest first.
func (r *MessageRepository) ListForRecipient(ctx context.Context, filter models.MessageFilter) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE recipient_id = $1`
	if filter.UnreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY sent_at DESC, id DESC`

	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, filter.RecipientID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// MarkAllRead flags every unread message of recipientID and reports how many changed.
func (r *MessageRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark messages read rows: %w", err)
	}
	return updated, nil
}

// UnreadCount counts a recipient's unread messages.
func (r *MessageRepository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND is_read = FALSE`, recipientID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
