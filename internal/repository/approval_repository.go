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

const approvalColumns = `id, type, submitted_by, detail, status, decided_by, decided_at, requested_at`

// ApprovalRepository persists generic approval requests.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a Pending approval.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.Approval) error {
	const query = `INSERT INTO approvals (id, type, submitted_by, detail, status, requested_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query,
		approval.ID, approval.Type, approval.SubmittedBy, approval.Detail, approval.Status, approval.RequestedAt,
	); err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

// GetByID loads an approval; returns sql.ErrNoRows when absent.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return &approval, nil
}

// List returns approvals newest first, optionally scoped to one status.
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals`
	var args []interface{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY requested_at DESC, id DESC`

	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, query, args...); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}

// Decide applies a terminal decision exactly once. A decided row surfaces as sql.ErrNoRows.
func (r *ApprovalRepository) Decide(ctx context.Context, id string, status models.DecisionStatus, decidedBy string, decidedAt time.Time) (*models.Approval, error) {
	query := `UPDATE approvals SET status = $2, decided_by = $3, decided_at = $4
	WHERE id = $1 AND status = 'Pending'
	RETURNING ` + approvalColumns
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, id, status, decidedBy, decidedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("decide approval: %w", err)
	}
	return &approval, nil
}
