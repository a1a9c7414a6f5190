package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/repository"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/ids"
)

type registrationStore interface {
	Create(ctx context.Context, reg *models.PendingRegistration) error
	GetByID(ctx context.Context, id string) (*models.PendingRegistration, error)
	ListPending(ctx context.Context) ([]models.PendingRegistration, error)
	PendingEmailExists(ctx context.Context, email string) (bool, error)
	Decide(ctx context.Context, q sqlx.ExtContext, id string, status models.DecisionStatus, decidedBy string, decidedAt time.Time, userID *string) error
}

type accountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, q sqlx.ExtContext, user *models.User) error
}

// SignupRequest is a self-service registration.
type SignupRequest struct {
	FirstName  string          `json:"firstName" validate:"required"`
	LastName   string          `json:"lastName" validate:"required"`
	Email      string          `json:"email" validate:"required,email"`
	Department string          `json:"department" validate:"required"`
	Role       models.UserRole `json:"role" validate:"required"`
	Password   string          `json:"password" validate:"required"`
}

// RegistrationService runs the Pending → Approved | Rejected signup machine.
type RegistrationService struct {
	repo        registrationStore
	accounts    accountStore
	tx          transactor
	audit       auditAppender
	ids         *ids.Generator
	clock       clock.Clock
	minPassword int
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewRegistrationService constructs the approval machine.
func NewRegistrationService(repo registrationStore, accounts accountStore, tx transactor, audit auditAppender, gen *ids.Generator, clk clock.Clock, minPassword int, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if gen == nil {
		gen = ids.NewGenerator(clk)
	}
	if minPassword <= 0 {
		minPassword = 3
	}
	return &RegistrationService{
		repo: repo, accounts: accounts, tx: tx, audit: audit, ids: gen, clock: clk,
		minPassword: minPassword, validator: validate, metrics: metrics, logger: logger,
	}
}

// Submit records a Pending registration. The password is stored only as a bcrypt hash.
func (s *RegistrationService) Submit(ctx context.Context, req SignupRequest) (*models.PendingRegistration, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Department = strings.TrimSpace(req.Department)
	req.Email = models.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "all fields are required")
	}
	if len(req.Password) < s.minPassword {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at least %d characters", s.minPassword))
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.Role))
	}

	if _, err := s.accounts.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Unavailable(err, "failed to check email")
	}
	exists, err := s.repo.PendingEmailExists(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to check pending registrations")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a registration for this email is already pending")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	reg := &models.PendingRegistration{
		ID:           s.ids.Prefixed("PU"),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Department:   req.Department,
		Role:         req.Role,
		PasswordHash: string(hash),
		Status:       models.DecisionPending,
		RequestedAt:  s.clock.Now(),
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a registration for this email is already pending")
		}
		return nil, appErrors.Unavailable(err, "failed to submit registration")
	}

	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "registration submit", AuditInput{
		Category: models.AuditCategoryApprovals,
		Action:   "Registration Submitted",
		Detail:   fmt.Sprintf("%s (%s) requested a %s account", reg.FullName(), reg.Email, reg.Role),
		Actor:    reg.FullName(),
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"registrationId": reg.ID},
	}); err != nil {
		return reg, err
	}
	return reg, nil
}

// ListPending returns undecided registrations.
func (s *RegistrationService) ListPending(ctx context.Context) ([]models.PendingRegistration, error) {
	regs, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list pending registrations")
	}
	if regs == nil {
		regs = []models.PendingRegistration{}
	}
	return regs, nil
}

// Approve decides the registration and creates the Active account in one transaction,
// so an approval is never visible without its account. A lost race or a repeat call
// fails with AlreadyDecided.
func (s *RegistrationService) Approve(ctx context.Context, id string, actor models.Actor) (*models.PendingRegistration, *models.User, error) {
	reg, err := s.loadPending(ctx, id, models.DecisionApproved)
	if err != nil {
		return nil, nil, err
	}
	userID, err := newUserID(s.ids, reg.Role)
	if err != nil {
		return nil, nil, err
	}

	decidedBy := decider(actor)
	now := s.clock.Now()
	user := &models.User{
		ID:            userID,
		Name:          reg.FullName(),
		Email:         reg.Email,
		PasswordHash:  reg.PasswordHash,
		Role:          reg.Role,
		Dept:          &reg.Department,
		AccountStatus: models.AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.tx.WithinTx(ctx, func(q sqlx.ExtContext) error {
		if err := s.repo.Decide(ctx, q, reg.ID, models.DecisionApproved, decidedBy, now, &user.ID); err != nil {
			return err
		}
		return s.accounts.Create(ctx, q, user)
	})
	if err != nil {
		s.metrics.RecordTransition("registration", string(models.DecisionApproved), outcomeRejected)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil, appErrors.Clone(appErrors.ErrAlreadyDecided, "registration already decided")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
		default:
			return nil, nil, appErrors.Unavailable(err, "failed to approve registration")
		}
	}
	s.metrics.RecordTransition("registration", string(models.DecisionApproved), outcomeApplied)

	reg.Status = models.DecisionApproved
	reg.DecidedBy = &decidedBy
	reg.DecidedAt = &now
	reg.UserID = &user.ID

	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "registration approval", AuditInput{
		Category: models.AuditCategoryApprovals,
		Action:   "Registration Approved",
		Detail:   fmt.Sprintf("%s approved as %s (%s)", reg.FullName(), reg.Role, user.ID),
		Actor:    decidedBy,
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"registrationId": reg.ID, "userId": user.ID},
	}); err != nil {
		return reg, user, err
	}
	return reg, user, nil
}

// Reject is a pure status transition.
func (s *RegistrationService) Reject(ctx context.Context, id string, actor models.Actor) (*models.PendingRegistration, error) {
	reg, err := s.loadPending(ctx, id, models.DecisionRejected)
	if err != nil {
		return nil, err
	}
	decidedBy := decider(actor)
	now := s.clock.Now()
	if err := s.repo.Decide(ctx, nil, reg.ID, models.DecisionRejected, decidedBy, now, nil); err != nil {
		s.metrics.RecordTransition("registration", string(models.DecisionRejected), outcomeRejected)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyDecided, "registration already decided")
		}
		return nil, appErrors.Unavailable(err, "failed to reject registration")
	}
	s.metrics.RecordTransition("registration", string(models.DecisionRejected), outcomeApplied)

	reg.Status = models.DecisionRejected
	reg.DecidedBy = &decidedBy
	reg.DecidedAt = &now

	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "registration rejection", AuditInput{
		Category: models.AuditCategoryApprovals,
		Action:   "Registration Rejected",
		Detail:   fmt.Sprintf("%s (%s) rejected", reg.FullName(), reg.Email),
		Actor:    decidedBy,
		Severity: models.SeverityWarning,
		Meta:     map[string]interface{}{"registrationId": reg.ID},
	}); err != nil {
		return reg, err
	}
	return reg, nil
}

// loadPending fetches the registration and fails fast when it is already terminal.
// The conditional update remains the authoritative guard.
func (s *RegistrationService) loadPending(ctx context.Context, id string, target models.DecisionStatus) (*models.PendingRegistration, error) {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "registration not found", "failed to load registration")
	}
	if reg.Status != models.DecisionPending {
		s.metrics.RecordTransition("registration", string(target), outcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrAlreadyDecided, fmt.Sprintf("registration already %s", strings.ToLower(string(reg.Status))))
	}
	return reg, nil
}

func decider(actor models.Actor) string {
	if actor.ID != "" {
		return actor.ID
	}
	return actor.Label()
}
