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

type auditService interface {
	Append(ctx context.Context, input service.AuditInput) (*models.AuditEntry, error)
	Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
	Export(ctx context.Context, filter models.AuditFilter, format string) (*service.ExportFile, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

type appendAuditPayload struct {
	Category string                 `json:"category"`
	Action   string                 `json:"action"`
	Detail   string                 `json:"detail"`
	Severity models.Severity        `json:"severity"`
	Meta     map[string]interface{} `json:"meta"`
}

// Append godoc
// @Summary Append a manual audit entry
// @Tags Audit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body appendAuditPayload true "Audit entry"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /audit [post]
func (h *AuditHandler) Append(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var payload appendAuditPayload
	if !bindJSON(c, &payload, "invalid audit payload") {
		return
	}
	entry, err := h.service.Append(c.Request.Context(), service.AuditInput{
		Category: payload.Category,
		Action:   payload.Action,
		Detail:   payload.Detail,
		Actor:    actor.Label(),
		Severity: payload.Severity,
		Meta:     payload.Meta,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Query godoc
// @Summary List audit entries newest first
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category"
// @Param severity query string false "Severity"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) Query(c *gin.Context) {
	filter, ok := auditFilter(c)
	if !ok {
		return
	}
	entries, err := h.service.Query(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"count": len(entries)})
}

// Export godoc
// @Summary Download audit entries as CSV or PDF
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	filter, ok := auditFilter(c)
	if !ok {
		return
	}
	file, err := h.service.Export(c.Request.Context(), filter, exportFormat(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

func auditFilter(c *gin.Context) (models.AuditFilter, bool) {
	limit, ok := queryLimit(c)
	if !ok {
		return models.AuditFilter{}, false
	}
	return models.AuditFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Severity: models.Severity(strings.TrimSpace(c.Query("severity"))),
		Limit:    limit,
	}, true
}
