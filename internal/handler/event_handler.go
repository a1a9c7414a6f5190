package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/service"
	"github.com/noah-isme/smartpass-api/pkg/response"
)

type eventService interface {
	Request(ctx context.Context, req service.EventRequest, actor models.Actor) (*models.Event, error)
	Respond(ctx context.Context, id string, req service.EventResponse, actor models.Actor) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// EventHandler exposes counseling appointments.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs the handler.
func NewEventHandler(svc eventService) *EventHandler {
	return &EventHandler{service: svc}
}

// Request godoc
// @Summary Request a counseling meeting
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EventRequest true "Request"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Request(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.EventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}
	event, err := h.service.Request(c.Request.Context(), req, actor)
	respondMutation(c, http.StatusCreated, event, err)
}

// Respond godoc
// @Summary Counselor response to a meeting request
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param payload body service.EventResponse true "Response"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id} [patch]
func (h *EventHandler) Respond(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.EventResponse
	if !bindJSON(c, &req, "invalid event response payload") {
		return
	}
	event, err := h.service.Respond(c.Request.Context(), c.Param("id"), req, actor)
	respondMutation(c, http.StatusOK, event, err)
}

// Get godoc
// @Summary Get a counseling event with its history
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// List godoc
// @Summary List counseling events newest first
// @Description Students only see their own events and counselors their assigned ones
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	filter := models.EventFilter{
		StudentID:   strings.TrimSpace(c.Query("studentId")),
		CounselorID: strings.TrimSpace(c.Query("counselorId")),
		Status:      models.EventStatus(strings.TrimSpace(c.Query("status"))),
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleCounselor:
		filter.CounselorID = actor.ID
	}
	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}
