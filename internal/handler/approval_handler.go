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

type approvalService interface {
	Create(ctx context.Context, req service.CreateApprovalRequest, actor models.Actor) (*models.Approval, error)
	Decide(ctx context.Context, id string, status models.DecisionStatus, actor models.Actor) (*models.Approval, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error)
}

// ApprovalHandler exposes ad-hoc approvals.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(svc approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

type decisionPayload struct {
	Status models.DecisionStatus `json:"status"`
}

// Create godoc
// @Summary File an approval request
// @Tags Approvals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateApprovalRequest true "Approval"
// @Success 201 {object} response.Envelope
// @Router /approvals [post]
func (h *ApprovalHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateApprovalRequest
	if !bindJSON(c, &req, "invalid approval payload") {
		return
	}
	approval, err := h.service.Create(c.Request.Context(), req, actor)
	respondMutation(c, http.StatusCreated, approval, err)
}

// Decide godoc
// @Summary Approve or reject a pending request
// @Tags Approvals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Approval ID"
// @Param payload body decisionPayload true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{id}/decision [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var payload decisionPayload
	if !bindJSON(c, &payload, "invalid decision payload") {
		return
	}
	approval, err := h.service.Decide(c.Request.Context(), c.Param("id"), payload.Status, actor)
	respondMutation(c, http.StatusOK, approval, err)
}

// List godoc
// @Summary List approvals newest first
// @Tags Approvals
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status"
// @Success 200 {object} response.Envelope
// @Router /approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	filter := models.ApprovalFilter{Status: models.DecisionStatus(strings.TrimSpace(c.Query("status")))}
	approvals, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approvals, nil)
}
