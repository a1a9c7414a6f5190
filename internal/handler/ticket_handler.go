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

type ticketService interface {
	Create(ctx context.Context, req service.CreateTicketRequest, actor models.Actor) (*models.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus, actor models.Actor) (*models.Ticket, error)
	Get(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
}

// TicketHandler exposes the help desk.
type TicketHandler struct {
	service ticketService
}

// NewTicketHandler constructs the handler.
func NewTicketHandler(svc ticketService) *TicketHandler {
	return &TicketHandler{service: svc}
}

type ticketStatusPayload struct {
	Status models.TicketStatus `json:"status"`
}

// Create godoc
// @Summary Open a help-desk ticket
// @Tags Tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTicketRequest true "Ticket"
// @Success 201 {object} response.Envelope
// @Router /tickets [post]
func (h *TicketHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateTicketRequest
	if !bindJSON(c, &req, "invalid ticket payload") {
		return
	}
	ticket, err := h.service.Create(c.Request.Context(), req, actor)
	respondMutation(c, http.StatusCreated, ticket, err)
}

// UpdateStatus godoc
// @Summary Move a ticket along its lifecycle
// @Tags Tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param payload body ticketStatusPayload true "Status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/status [patch]
func (h *TicketHandler) UpdateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var payload ticketStatusPayload
	if !bindJSON(c, &payload, "invalid ticket status payload") {
		return
	}
	ticket, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), payload.Status, actor)
	respondMutation(c, http.StatusOK, ticket, err)
}

// Get godoc
// @Summary Get a ticket
// @Tags Tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Router /tickets/{id} [get]
func (h *TicketHandler) Get(c *gin.Context) {
	ticket, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// List godoc
// @Summary List tickets newest first
// @Description Non-admins only see tickets they opened
// @Tags Tickets
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status"
// @Param priority query string false "Priority"
// @Success 200 {object} response.Envelope
// @Router /tickets [get]
func (h *TicketHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	filter := models.TicketFilter{
		Status:      models.TicketStatus(strings.TrimSpace(c.Query("status"))),
		Priority:    models.TicketPriority(strings.TrimSpace(c.Query("priority"))),
		RequestorID: strings.TrimSpace(c.Query("requestorId")),
	}
	if !actor.Role.IsAdmin() {
		filter.RequestorID = actor.ID
	}
	tickets, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tickets, nil)
}
