package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smartpass-api/internal/middleware"
	"github.com/noah-isme/smartpass-api/internal/models"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/response"
)

func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

// respondMutation writes the result of a state change. An audit-degraded outcome
// still carries the applied entity.
func respondMutation(c *gin.Context, status int, data interface{}, err error) {
	if err != nil {
		if isDegraded(err) {
			response.Degraded(c, data, err)
			return
		}
		response.Error(c, err)
		return
	}
	if data == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, status, data, nil)
}

func isDegraded(err error) bool {
	return appErrors.HasCode(err, appErrors.ErrAuditDegraded)
}

func queryDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" must be YYYY-MM-DD"))
		return nil, false
	}
	return &parsed, true
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer"))
		return 0, false
	}
	return limit, true
}

func exportFormat(c *gin.Context) string {
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		return "csv"
	}
	return format
}
