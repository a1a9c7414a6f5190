package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/service"
	"github.com/noah-isme/smartpass-api/pkg/response"
)

type registrationService interface {
	Submit(ctx context.Context, req service.SignupRequest) (*models.PendingRegistration, error)
	ListPending(ctx context.Context) ([]models.PendingRegistration, error)
	Approve(ctx context.Context, id string, actor models.Actor) (*models.PendingRegistration, *models.User, error)
	Reject(ctx context.Context, id string, actor models.Actor) (*models.PendingRegistration, error)
}

// RegistrationHandler exposes self-service signup and its admin review.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(svc registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

type approvalResult struct {
	Registration *models.PendingRegistration `json:"registration"`
	User         *models.User                `json:"user"`
}

// Signup godoc
// @Summary Submit a registration for admin approval
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.SignupRequest true "Signup"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/signup [post]
func (h *RegistrationHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if !bindJSON(c, &req, "invalid signup payload") {
		return
	}
	reg, err := h.service.Submit(c.Request.Context(), req)
	respondMutation(c, http.StatusCreated, reg, err)
}

// ListPending godoc
// @Summary List pending registrations newest first
// @Tags Registrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /registrations/pending [get]
func (h *RegistrationHandler) ListPending(c *gin.Context) {
	regs, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// Approve godoc
// @Summary Approve a registration and provision the account
// @Tags Registrations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reg, user, err := h.service.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil && !isDegraded(err) {
		response.Error(c, err)
		return
	}
	respondMutation(c, http.StatusOK, approvalResult{Registration: reg, User: user}, err)
}

// Reject godoc
// @Summary Reject a registration
// @Tags Registrations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reg, err := h.service.Reject(c.Request.Context(), c.Param("id"), actor)
	respondMutation(c, http.StatusOK, reg, err)
}
