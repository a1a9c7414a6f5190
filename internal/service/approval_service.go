package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/ids"
)

type approvalStore interface {
	Create(ctx context.Context, approval *models.Approval) error
	GetByID(ctx context.Context, id string) (*models.Approval, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error)
	Decide(ctx context.Context, id string, status models.DecisionStatus, decidedBy string, decidedAt time.Time) (*models.Approval, error)
}

// CreateApprovalRequest files an ad-hoc request.
type CreateApprovalRequest struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// ApprovalService is the one-shot Pending → Approved | Rejected machine for ad-hoc requests.
type ApprovalService struct {
	repo    approvalStore
	audit   auditAppender
	ids     *ids.Generator
	clock   clock.Clock
	metrics *MetricsService
	logger  *zap.Logger
}

// NewApprovalService constructs the workflow.
func NewApprovalService(repo approvalStore, audit auditAppender, gen *ids.Generator, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if gen == nil {
		gen = ids.NewGenerator(clk)
	}
	return &ApprovalService{repo: repo, audit: audit, ids: gen, clock: clk, metrics: metrics, logger: logger}
}

// Create files a Pending approval.
func (s *ApprovalService) Create(ctx context.Context, req CreateApprovalRequest, actor models.Actor) (*models.Approval, error) {
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type is required")
	}
	approval := &models.Approval{
		ID:          s.ids.Prefixed("AP"),
		Type:        req.Type,
		SubmittedBy: actor.Label(),
		Detail:      req.Detail,
		Status:      models.DecisionPending,
		RequestedAt: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, approval); err != nil {
		return nil, appErrors.Unavailable(err, "failed to create approval")
	}
	s.metrics.RecordTransition("approval", string(models.DecisionPending), outcomeApplied)

	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "approval request", AuditInput{
		Category: models.AuditCategorySystem,
		Action:   "Approval Requested",
		Detail:   fmt.Sprintf("%s · %s", approval.ID, approval.Type),
		Actor:    actor.Label(),
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"approvalId": approval.ID},
	}); err != nil {
		return approval, err
	}
	return approval, nil
}

// Decide applies a terminal decision exactly once.
func (s *ApprovalService) Decide(ctx context.Context, id string, status models.DecisionStatus, actor models.Actor) (*models.Approval, error) {
	if !status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be Approved or Rejected")
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "approval not found", "failed to load approval")
	}
	if current.Status != models.DecisionPending {
		s.metrics.RecordTransition("approval", string(status), outcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrAlreadyDecided, fmt.Sprintf("approval already %s", strings.ToLower(string(current.Status))))
	}

	decidedBy := decider(actor)
	updated, err := s.repo.Decide(ctx, id, status, decidedBy, s.clock.Now())
	if err != nil {
		s.metrics.RecordTransition("approval", string(status), outcomeRejected)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyDecided, "approval already decided")
		}
		return nil, appErrors.Unavailable(err, "failed to decide approval")
	}
	s.metrics.RecordTransition("approval", string(status), outcomeApplied)

	severity := models.SeverityInfo
	if status == models.DecisionRejected {
		severity = models.SeverityWarning
	}
	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "approval decision", AuditInput{
		Category: models.AuditCategorySystem,
		Action:   "Approval Decision",
		Detail:   fmt.Sprintf("%s → %s", id, status),
		Actor:    decidedBy,
		Severity: severity,
		Meta:     map[string]interface{}{"approvalId": id, "type": updated.Type},
	}); err != nil {
		return updated, err
	}
	return updated, nil
}

// List returns approvals newest first.
func (s *ApprovalService) List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error) {
	approvals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list approvals")
	}
	if approvals == nil {
		approvals = []models.Approval{}
	}
	return approvals, nil
}
