package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/service"
	"github.com/noah-isme/smartpass-api/pkg/response"
)

type messageService interface {
	Send(ctx context.Context, req service.SendMessageRequest, actor models.Actor) (*models.Message, error)
	Inbox(ctx context.Context, filter models.MessageFilter) ([]models.Message, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
}

// MessageHandler exposes direct messaging.
type MessageHandler struct {
	service messageService
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(svc messageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

// Send godoc
// @Summary Send a direct message
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.SendMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	msg, err := h.service.Send(c.Request.Context(), req, actor)
	respondMutation(c, http.StatusCreated, msg, err)
}

// Inbox godoc
// @Summary List a user's messages newest first
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recipient ID"
// @Param unread query bool false "Only unread messages"
// @Success 200 {object} response.Envelope
// @Router /messages/{id} [get]
func (h *MessageHandler) Inbox(c *gin.Context) {
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))
	messages, err := h.service.Inbox(c.Request.Context(), models.MessageFilter{RecipientID: c.Param("id"), UnreadOnly: unreadOnly})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// MarkRead godoc
// @Summary Mark all of a user's messages read
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recipient ID"
// @Success 200 {object} response.Envelope
// @Router /messages/{id}/read [put]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	updated, err := h.service.MarkAllRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": updated}, nil)
}

// UnreadCount godoc
// @Summary Count a user's unread messages
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recipient ID"
// @Success 200 {object} response.Envelope
// @Router /messages/{id}/unread [get]
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}
