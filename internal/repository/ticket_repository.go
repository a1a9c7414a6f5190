package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smartpass-api/internal/models"
)

const ticketColumns = `id, subject, category, priority, details, owner_id, requestor_id, status, resolved_at, resolved_by, created_at`

// TicketRepository persists help-desk tickets.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository constructs the repository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	const query = `INSERT INTO tickets (id, subject, category, priority, details, owner_id, requestor_id, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		ticket.ID, ticket.Subject, ticket.Category, ticket.Priority, ticket.Details, ticket.OwnerID, ticket.RequestorID, ticket.Status, ticket.CreatedAt,
	); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// GetByID loads a ticket; returns sql.ErrNoRows when absent.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.GetContext(ctx, &ticket, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &ticket, nil
}

// List returns tickets newest first.
func (r *TicketRepository) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	ph := &placeholder{}
	where := []string{"1=1"}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", ph.next(filter.Status)))
	}
	if filter.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", ph.next(filter.Priority)))
	}
	if filter.RequestorID != "" {
		where = append(where, fmt.Sprintf("requestor_id = $%d", ph.next(filter.RequestorID)))
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC`, ticketColumns, strings.Join(where, " AND "))

	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query, ph.args...); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// UpdateStatus moves a ticket from one status to the next. Resolution fields are
// set when entering Resolved and cleared otherwise. A status that changed
// underneath the caller surfaces as sql.ErrNoRows.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id string, from, to models.TicketStatus, actor string, at time.Time) (*models.Ticket, error) {
	var resolvedAt *time.Time
	var resolvedBy *string
	if to == models.TicketResolved {
		resolvedAt = &at
		resolvedBy = &actor
	}
	query := `UPDATE tickets SET status = $3, resolved_at = $4, resolved_by = $5
	WHERE id = $1 AND status = $2
	RETURNING ` + ticketColumns
	var ticket models.Ticket
	if err := r.db.GetContext(ctx, &ticket, query, id, from, to, resolvedAt, resolvedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update ticket status: %w", err)
	}
	return &ticket, nil
}
