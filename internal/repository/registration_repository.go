package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smartpass-api/internal/models"
)

const registrationColumns = `id, first_name, last_name, email, department, role, password_hash, status, decided_by, decided_at, user_id, requested_at`

// RegistrationRepository persists pending self-service registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create stores a new Pending registration.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.PendingRegistration) error {
	const query = `INSERT INTO pending_registrations (id, first_name, last_name, email, department, role, password_hash, status, requested_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		reg.ID, reg.FirstName, reg.LastName, reg.Email, reg.Department, reg.Role, reg.PasswordHash, reg.Status, reg.RequestedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create registration %s: %w", reg.Email, ErrDuplicate)
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// GetByID loads a registration; returns sql.ErrNoRows when absent.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*models.PendingRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM pending_registrations WHERE id = $1`
	var reg models.PendingRegistration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

// ListPending returns undecided registrations, newest first.
func (r *RegistrationRepository) ListPending(ctx context.Context) ([]models.PendingRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM pending_registrations WHERE status = $1 ORDER BY requested_at DESC, id DESC`
	var regs []models.PendingRegistration
	if err := r.db.SelectContext(ctx, &regs, query, models.DecisionPending); err != nil {
		return nil, fmt.Errorf("list pending registrations: %w", err)
	}
	return regs, nil
}

// PendingEmailExists reports whether an undecided registration already holds email.
func (r *RegistrationRepository) PendingEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM pending_registrations WHERE email = $1 AND status = $2)`
	if err := r.db.GetContext(ctx, &exists, query, email, models.DecisionPending); err != nil {
		return false, fmt.Errorf("check pending email: %w", err)
	}
	return exists, nil
}

// Decide moves a Pending registration to a terminal status. Zero affected rows means
// another decision won and surfaces as sql.ErrNoRows.
func (r *RegistrationRepository) Decide(ctx context.Context, q sqlx.ExtContext, id string, status models.DecisionStatus, decidedBy string, decidedAt time.Time, userID *string) error {
	if q == nil {
		q = r.db
	}
	const query = `UPDATE pending_registrations
	SET status = $2, decided_by = $3, decided_at = $4, user_id = $5
	WHERE id = $1 AND status = 'Pending'`
	result, err := q.ExecContext(ctx, query, id, status, decidedBy, decidedAt, userID)
	if err != nil {
		return fmt.Errorf("decide registration: %w", err)
	}
	return requireRow(result, "decide registration")
}
