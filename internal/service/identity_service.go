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
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/repository"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/ids"
)

type identityStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Create(ctx context.Context, q sqlx.ExtContext, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, q sqlx.ExtContext, id string) error
	ResolveCard(ctx context.Context, cardNumber string) (string, error)
	BindCard(ctx context.Context, q sqlx.ExtContext, cardNumber, studentID string, boundAt time.Time) error
	UnbindCard(ctx context.Context, cardNumber string) error
	ListCards(ctx context.Context, filter models.CardFilter) ([]models.RFIDBinding, error)
}

// CreateUserRequest is an admin-initiated account creation.
type CreateUserRequest struct {
	Name     string          `json:"name" validate:"required"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
	Dept     *string         `json:"dept"`
	RFIDCard *string         `json:"rfidCard"`
}

// UpdateUserRequest is an admin edit.
type UpdateUserRequest struct {
	Name string          `json:"name" validate:"required"`
	Role models.UserRole `json:"role" validate:"required"`
	Dept *string         `json:"dept"`
}

// IdentityConfig tunes the directory.
type IdentityConfig struct {
	NameCacheTTL      time.Duration
	MinPasswordLength int
}

// IdentityService is the read-mostly user and RFID directory plus admin account management.
type IdentityService struct {
	repo      identityStore
	tx        transactor
	audit     auditAppender
	cache     *CacheService
	ids       *ids.Generator
	clock     clock.Clock
	cfg       IdentityConfig
	validator *validator.Validate
	names     singleflight.Group
	logger    *zap.Logger
}

// NewIdentityService constructs the directory.
func NewIdentityService(repo identityStore, tx transactor, audit auditAppender, cache *CacheService, gen *ids.Generator, clk clock.Clock, cfg IdentityConfig, validate *validator.Validate, logger *zap.Logger) *IdentityService {
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
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 3
	}
	return &IdentityService{repo: repo, tx: tx, audit: audit, cache: cache, ids: gen, clock: clk, cfg: cfg, validator: validate, logger: logger}
}

// FindByEmail matches case-insensitively on the trimmed address.
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	return user, nil
}

// FindByID loads a user.
func (s *IdentityService) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	return user, nil
}

// DisplayName resolves a user's name through the cache. Concurrent lookups for the
// same id share one store read.
func (s *IdentityService) DisplayName(ctx context.Context, id string) (string, error) {
	key := nameCacheKey(id)
	var name string
	if s.cache.Get(ctx, key, &name) {
		return name, nil
	}
	v, err, _ := s.names.Do(id, func() (interface{}, error) {
		user, err := s.FindByID(ctx, id)
		if err != nil {
			return "", err
		}
		s.cache.Set(ctx, key, user.Name, s.cfg.NameCacheTTL)
		return user.Name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ListUsers returns users ordered by name.
func (s *IdentityService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", *filter.Role))
	}
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// ListCards returns every card binding, optionally for one student.
func (s *IdentityService) ListCards(ctx context.Context, filter models.CardFilter) ([]models.RFIDBinding, error) {
	filter.StudentID = strings.TrimSpace(filter.StudentID)
	cards, err := s.repo.ListCards(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list cards")
	}
	if cards == nil {
		cards = []models.RFIDBinding{}
	}
	return cards, nil
}

// ResolveCard returns the student bound to cardNumber.
func (s *IdentityService) ResolveCard(ctx context.Context, cardNumber string) (string, error) {
	cardNumber = strings.TrimSpace(cardNumber)
	if cardNumber == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "card number is required")
	}
	studentID, err := s.repo.ResolveCard(ctx, cardNumber)
	if err != nil {
		return "", notFoundOr(err, "card not registered", "failed to resolve card")
	}
	return studentID, nil
}

// BindCard associates a card with a student. The store performs the uniqueness check
// and the insert as one statement; a card held by someone else fails with AlreadyBound.
func (s *IdentityService) BindCard(ctx context.Context, cardNumber, studentID string, actor models.Actor) error {
	cardNumber = strings.TrimSpace(cardNumber)
	if cardNumber == "" || strings.TrimSpace(studentID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "card number and student are required")
	}
	student, err := s.FindByID(ctx, studentID)
	if err != nil {
		return err
	}
	if student.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "cards can only be bound to students")
	}
	if err := s.repo.BindCard(ctx, nil, cardNumber, studentID, s.clock.Now()); err != nil {
		return s.mapBindError(err, cardNumber)
	}
	return recordAudit(ctx, s.audit, nil, s.logger, "card bind", AuditInput{
		Category: models.AuditCategorySystem,
		Action:   "RFID Bound",
		Detail:   fmt.Sprintf("Card %s bound to %s", cardNumber, student.Name),
		Actor:    actor.Label(),
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"cardNumber": cardNumber, "studentId": studentID},
	})
}

// UnbindCard releases a card for reassignment.
func (s *IdentityService) UnbindCard(ctx context.Context, cardNumber string, actor models.Actor) error {
	cardNumber = strings.TrimSpace(cardNumber)
	if err := s.repo.UnbindCard(ctx, cardNumber); err != nil {
		return notFoundOr(err, "card not registered", "failed to unbind card")
	}
	return recordAudit(ctx, s.audit, nil, s.logger, "card unbind", AuditInput{
		Category: models.AuditCategorySystem,
		Action:   "RFID Unbound",
		Detail:   fmt.Sprintf("Card %s released", cardNumber),
		Actor:    actor.Label(),
		Severity: models.SeverityWarning,
		Meta:     map[string]interface{}{"cardNumber": cardNumber},
	})
}

// CreateUser provisions an active account. A student's optional card is bound in the
// same transaction, so a card conflict leaves no account behind.
func (s *IdentityService) CreateUser(ctx context.Context, req CreateUserRequest, actor models.Actor) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid create user payload")
	}
	if len(req.Password) < s.cfg.MinPasswordLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at least %d characters", s.cfg.MinPasswordLength))
	}
	id, err := newUserID(s.ids, req.Role)
	if err != nil {
		return nil, err
	}
	var card string
	if req.RFIDCard != nil {
		card = strings.TrimSpace(*req.RFIDCard)
	}
	if card != "" && req.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cards can only be bound to students")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Unavailable(err, "failed to check email uniqueness")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := s.clock.Now()
	user := &models.User{
		ID:            id,
		Name:          strings.TrimSpace(req.Name),
		Email:         models.NormalizeEmail(req.Email),
		PasswordHash:  string(hash),
		Role:          req.Role,
		Dept:          req.Dept,
		AccountStatus: models.AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.tx.WithinTx(ctx, func(q sqlx.ExtContext) error {
		if err := s.repo.Create(ctx, q, user); err != nil {
			return err
		}
		if card != "" {
			return s.repo.BindCard(ctx, q, card, user.ID, now)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, s.mapBindError(err, card)
	}

	meta := map[string]interface{}{"userId": user.ID, "role": string(user.Role)}
	if card != "" {
		meta["cardNumber"] = card
	}
	if err := recordAudit(ctx, s.audit, nil, s.logger, "user creation", AuditInput{
		Category: models.AuditCategorySystem,
		Action:   "User Created",
		Detail:   fmt.Sprintf("%s (%s) created by admin", user.Name, user.Role),
		Actor:    actor.Label(),
		Severity: models.SeverityInfo,
		Meta:     meta,
	}); err != nil {
		return user, err
	}
	return user, nil
}

// UpdateUser applies an admin edit of name, role and department.
func (s *IdentityService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest, actor models.Actor) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update user payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.Role))
	}
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previousRole := user.Role
	user.Name = strings.TrimSpace(req.Name)
	user.Role = req.Role
	user.Dept = req.Dept
	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, notFoundOr(err, "user not found", "failed to update user")
	}
	s.cache.Invalidate(ctx, nameCacheKey(id))

	if err := recordAudit(ctx, s.audit, nil, s.logger, "user update", AuditInput{
		Category: models.AuditCategorySystem,
		Action:   "User Updated",
		Detail:   fmt.Sprintf("%s updated (%s → %s)", user.Name, previousRole, user.Role),
		Actor:    actor.Label(),
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"userId": id},
	}); err != nil {
		return user, err
	}
	return user, nil
}

// DeleteUser removes an account together with its card bindings.
func (s *IdentityService) DeleteUser(ctx context.Context, id string, actor models.Actor) error {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tx.WithinTx(ctx, func(q sqlx.ExtContext) error {
		return s.repo.Delete(ctx, q, id)
	}); err != nil {
		return notFoundOr(err, "user not found", "failed to delete user")
	}
	s.cache.Invalidate(ctx, nameCacheKey(id))

	return recordAudit(ctx, s.audit, nil, s.logger, "user removal", AuditInput{
		Category: models.AuditCategorySystem,
		Action:   "User Deleted",
		Detail:   fmt.Sprintf("%s (%s) removed", user.Name, user.Role),
		Actor:    actor.Label(),
		Severity: models.SeverityWarning,
		Meta:     map[string]interface{}{"userId": id},
	})
}

func (s *IdentityService) mapBindError(err error, cardNumber string) error {
	if errors.Is(err, repository.ErrCardBound) {
		return appErrors.Clone(appErrors.ErrAlreadyBound, fmt.Sprintf("card %s is already bound to another student", cardNumber))
	}
	return appErrors.Unavailable(err, "failed to store account")
}

func nameCacheKey(id string) string {
	return "identity:name:" + id
}
