package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/service"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/response"
)

type identityService interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	ResolveCard(ctx context.Context, cardNumber string) (string, error)
	ListCards(ctx context.Context, filter models.CardFilter) ([]models.RFIDBinding, error)
	BindCard(ctx context.Context, cardNumber, studentID string, actor models.Actor) error
	UnbindCard(ctx context.Context, cardNumber string, actor models.Actor) error
	CreateUser(ctx context.Context, req service.CreateUserRequest, actor models.Actor) (*models.User, error)
	UpdateUser(ctx context.Context, id string, req service.UpdateUserRequest, actor models.Actor) (*models.User, error)
	DeleteUser(ctx context.Context, id string, actor models.Actor) error
}

// UserHandler exposes the identity directory and admin account management.
type UserHandler struct {
	service identityService
}

// NewUserHandler constructs the handler.
func NewUserHandler(svc identityService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users ordered by name
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role"
// @Param search query string false "Name or email fragment"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		role := models.UserRole(raw)
		filter.Role = &role
	}
	filter.Search = strings.TrimSpace(c.Query("search"))

	users, err := h.service.ListUsers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Get godoc
// @Summary Get a user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Create a user
// @Description Students may be created with an RFID card bound in the same transaction
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateUserRequest true "User"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateUserRequest
	if !bindJSON(c, &req, "invalid user payload") {
		return
	}
	user, err := h.service.CreateUser(c.Request.Context(), req, actor)
	respondMutation(c, http.StatusCreated, user, err)
}

// Update godoc
// @Summary Update a user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "User"
// @Success 200 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if !bindJSON(c, &req, "invalid user payload") {
		return
	}
	user, err := h.service.UpdateUser(c.Request.Context(), c.Param("id"), req, actor)
	respondMutation(c, http.StatusOK, user, err)
}

// Delete godoc
// @Summary Delete a user and release their cards
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	err := h.service.DeleteUser(c.Request.Context(), c.Param("id"), actor)
	respondMutation(c, http.StatusNoContent, nil, err)
}

type bindCardPayload struct {
	CardNumber string `json:"cardNumber"`
	StudentID  string `json:"studentId"`
}

// BindCard godoc
// @Summary Bind an RFID card to a student
// @Tags RFID
// @Accept json
// @Security BearerAuth
// @Param payload body bindCardPayload true "Binding"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /rfid/cards [post]
func (h *UserHandler) BindCard(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var payload bindCardPayload
	if !bindJSON(c, &payload, "invalid card payload") {
		return
	}
	err := h.service.BindCard(c.Request.Context(), payload.CardNumber, payload.StudentID, actor)
	respondMutation(c, http.StatusNoContent, nil, err)
}

// UnbindCard godoc
// @Summary Release an RFID card
// @Tags RFID
// @Security BearerAuth
// @Param card path string true "Card number"
// @Success 204
// @Router /rfid/cards/{card} [delete]
func (h *UserHandler) UnbindCard(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	err := h.service.UnbindCard(c.Request.Context(), c.Param("card"), actor)
	respondMutation(c, http.StatusNoContent, nil, err)
}

// ListCards godoc
// @Summary List RFID card bindings
// @Tags RFID
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student"
// @Success 200 {object} response.Envelope
// @Router /rfid/cards [get]
func (h *UserHandler) ListCards(c *gin.Context) {
	cards, err := h.service.ListCards(c.Request.Context(), models.CardFilter{StudentID: c.Query("studentId")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, nil, map[string]interface{}{"count": len(cards)})
}

// ResolveCard godoc
// @Summary Resolve the student bound to a card
// @Tags RFID
// @Produce json
// @Security BearerAuth
// @Param card path string true "Card number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rfid/cards/{card} [get]
func (h *UserHandler) ResolveCard(c *gin.Context) {
	card := strings.TrimSpace(c.Param("card"))
	if card == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "card number is required"))
		return
	}
	studentID, err := h.service.ResolveCard(c.Request.Context(), card)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cardNumber": card, "studentId": studentID}, nil)
}
