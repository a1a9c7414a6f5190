package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/smartpass-api/internal/models"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/ids"
)

type auditAppender interface {
	Append(ctx context.Context, input AuditInput) (*models.AuditEntry, error)
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(q sqlx.ExtContext) error) error
}

// Transition outcomes reported to MetricsService.
const (
	outcomeApplied  = "applied"
	outcomeRejected = "rejected"
)

// recordAudit appends the audit entry for a mutation that has already been applied.
// A failed append is reported as AuditDegraded so callers never mistake it for success.
func recordAudit(ctx context.Context, audit auditAppender, metrics *MetricsService, logger *zap.Logger, operation string, input AuditInput) error {
	if _, err := audit.Append(ctx, input); err != nil {
		metrics.RecordAuditFailure(input.Category)
		logger.Error("audit append failed after mutation",
			zap.String("operation", operation),
			zap.String("category", input.Category),
			zap.String("action", input.Action),
			zap.Error(err),
		)
		return appErrors.Degraded(err, operation)
	}
	return nil
}

// notFoundOr maps sql.ErrNoRows to a NotFound error and anything else to StoreUnavailable.
func notFoundOr(err error, notFound, unavailable string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Unavailable(err, unavailable)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// newUserID mints a role-prefixed identifier. Roles outside the closed set fail validation.
func newUserID(gen *ids.Generator, role models.UserRole) (string, error) {
	prefix, ok := role.IDPrefix()
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", role))
	}
	return gen.Prefixed(prefix), nil
}
