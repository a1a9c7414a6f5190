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

type wellnessService interface {
	Submit(ctx context.Context, req service.WellnessCheckIn, actor models.Actor) (*models.WellnessLog, error)
	List(ctx context.Context, filter models.WellnessFilter) ([]models.WellnessLog, error)
	Summary(ctx context.Context, rawDate string) (*models.WellnessSummary, error)
}

// WellnessHandler exposes mood check-ins.
type WellnessHandler struct {
	service wellnessService
}

// NewWellnessHandler constructs the handler.
func NewWellnessHandler(svc wellnessService) *WellnessHandler {
	return &WellnessHandler{service: svc}
}

// Submit godoc
// @Summary Log a wellness check-in
// @Tags Wellness
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.WellnessCheckIn true "Check-in"
// @Success 201 {object} response.Envelope
// @Router /wellness [post]
func (h *WellnessHandler) Submit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.WellnessCheckIn
	if !bindJSON(c, &req, "invalid wellness payload") {
		return
	}
	log, err := h.service.Submit(c.Request.Context(), req, actor)
	respondMutation(c, http.StatusCreated, log, err)
}

// List godoc
// @Summary List check-ins newest first
// @Tags Wellness
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student"
// @Param date query string false "YYYY-MM-DD"
// @Param mood query string false "Mood"
// @Success 200 {object} response.Envelope
// @Router /wellness [get]
func (h *WellnessHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	date, ok := queryDate(c, "date")
	if !ok {
		return
	}
	filter := models.WellnessFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		Date:      date,
		Mood:      strings.TrimSpace(c.Query("mood")),
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.ID
	}
	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Summary godoc
// @Summary Daily mood summary with follow-up flags
// @Tags Wellness
// @Produce json
// @Security BearerAuth
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Router /wellness/summary [get]
func (h *WellnessHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
