package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
)

type messageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	ListForRecipient(ctx context.Context, filter models.MessageFilter) ([]models.Message, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
}

// SendMessageRequest is a direct message from the acting user.
type SendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
}

// MessageService delivers direct messages between users.
type MessageService struct {
	repo      messageStore
	directory userDirectory
	audit     auditAppender
	clock     clock.Clock
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewMessageService constructs the service.
func NewMessageService(repo messageStore, directory userDirectory, audit auditAppender, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &MessageService{repo: repo, directory: directory, audit: audit, clock: clk, metrics: metrics, logger: logger}
}

// Send stores a message from actor to the recipient and audits it.
func (s *MessageService) Send(ctx context.Context, req SendMessageRequest, actor models.Actor) (*models.Message, error) {
	if actor.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sender identity required")
	}
	req.RecipientID = strings.TrimSpace(req.RecipientID)
	req.Subject = strings.TrimSpace(req.Subject)
	if req.RecipientID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipientId is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message is required")
	}
	recipient, err := s.directory.FindByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || appErrors.HasCode(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recipient not found")
		}
		return nil, appErrors.Unavailable(err, "failed to load recipient")
	}

	msg := &models.Message{
		SenderID:    actor.ID,
		RecipientID: recipient.ID,
		Subject:     req.Subject,
		Body:        req.Message,
		SentAt:      s.clock.Now(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, appErrors.Unavailable(err, "failed to send message")
	}

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "message send", AuditInput{
		Category: models.AuditCategoryMessages,
		Action:   "Message Sent",
		Detail:   fmt.Sprintf("%s → %s: %s", actor.Label(), recipient.Name, subject),
		Actor:    actor.Label(),
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"messageId": msg.ID, "recipientId": recipient.ID},
	}); err != nil {
		return msg, err
	}
	return msg, nil
}

// Inbox lists a recipient's messages newest first.
func (s *MessageService) Inbox(ctx context.Context, filter models.MessageFilter) ([]models.Message, error) {
	filter.RecipientID = strings.TrimSpace(filter.RecipientID)
	if filter.RecipientID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipient is required")
	}
	messages, err := s.repo.ListForRecipient(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list messages")
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// MarkAllRead clears the recipient's unread flag and returns how many messages changed.
func (s *MessageService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, strings.TrimSpace(recipientID))
	if err != nil {
		return 0, appErrors.Unavailable(err, "failed to mark messages read")
	}
	return updated, nil
}

// UnreadCount counts the recipient's unread messages.
func (s *MessageService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := s.repo.UnreadCount(ctx, strings.TrimSpace(recipientID))
	if err != nil {
		return 0, appErrors.Unavailable(err, "failed to count unread messages")
	}
	return count, nil
}
