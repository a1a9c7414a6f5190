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

type ticketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
	UpdateStatus(ctx context.Context, id string, from, to models.TicketStatus, actor string, at time.Time) (*models.Ticket, error)
}

// CreateTicketRequest opens a help-desk ticket.
type CreateTicketRequest struct {
	Subject  string                `json:"subject"`
	Category string                `json:"category"`
	Priority models.TicketPriority `json:"priority"`
	Details  string                `json:"details"`
	OwnerID  string                `json:"ownerId"`
}

// TicketService runs the help-desk lifecycle.
type TicketService struct {
	repo    ticketStore
	audit   auditAppender
	ids     *ids.Generator
	clock   clock.Clock
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTicketService constructs the workflow.
func NewTicketService(repo ticketStore, audit auditAppender, gen *ids.Generator, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if gen == nil {
		gen = ids.NewGenerator(clk)
	}
	return &TicketService{repo: repo, audit: audit, ids: gen, clock: clk, metrics: metrics, logger: logger}
}

// Create opens an Open ticket for the requesting identity.
func (s *TicketService) Create(ctx context.Context, req CreateTicketRequest, actor models.Actor) (*models.Ticket, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	if strings.TrimSpace(req.Category) == "" {
		req.Category = models.TicketDefaultCategory
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", req.Priority))
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		req.OwnerID = models.TicketDefaultOwner
	}
	requestor := actor.ID
	if requestor == "" {
		requestor = models.AuditActorSystem
	}

	ticket := &models.Ticket{
		ID:          s.ids.Prefixed("TK"),
		Subject:     req.Subject,
		Category:    strings.TrimSpace(req.Category),
		Priority:    req.Priority,
		Details:     req.Details,
		OwnerID:     req.OwnerID,
		RequestorID: requestor,
		Status:      models.TicketOpen,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, appErrors.Unavailable(err, "failed to create ticket")
	}
	s.metrics.RecordTransition("ticket", string(models.TicketOpen), outcomeApplied)

	severity := models.SeverityInfo
	if ticket.Priority == models.PriorityCritical {
		severity = models.SeverityCritical
	}
	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "ticket creation", AuditInput{
		Category: models.AuditCategoryTickets,
		Action:   "Ticket Created",
		Detail:   fmt.Sprintf("%s · %s · %s", ticket.ID, ticket.Subject, ticket.Priority),
		Actor:    actor.Label(),
		Severity: severity,
		Meta:     map[string]interface{}{"ticketId": ticket.ID, "priority": string(ticket.Priority)},
	}); err != nil {
		return ticket, err
	}
	return ticket, nil
}

// UpdateStatus moves a ticket along its lifecycle. resolvedAt and resolvedBy are set
// exactly when the new status is Resolved.
func (s *TicketService) UpdateStatus(ctx context.Context, id string, status models.TicketStatus, actor models.Actor) (*models.Ticket, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown ticket status %q", status))
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ticket not found", "failed to load ticket")
	}
	if !current.Status.CanTransitionTo(status) {
		s.metrics.RecordTransition("ticket", string(status), outcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("ticket cannot move from %s to %s", current.Status, status))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, status, decider(actor), s.clock.Now())
	if err != nil {
		s.metrics.RecordTransition("ticket", string(status), outcomeRejected)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "ticket status changed concurrently")
		}
		return nil, appErrors.Unavailable(err, "failed to update ticket")
	}
	s.metrics.RecordTransition("ticket", string(status), outcomeApplied)

	severity := models.SeverityWarning
	if status == models.TicketResolved {
		severity = models.SeverityInfo
	}
	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "ticket update", AuditInput{
		Category: models.AuditCategoryTickets,
		Action:   "Ticket " + string(status),
		Detail:   fmt.Sprintf("Ticket %s marked %s", id, status),
		Actor:    actor.Label(),
		Severity: severity,
		Meta:     map[string]interface{}{"ticketId": id, "from": string(current.Status), "to": string(status)},
	}); err != nil {
		return updated, err
	}
	return updated, nil
}

// Get loads one ticket.
func (s *TicketService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ticket not found", "failed to load ticket")
	}
	return ticket, nil
}

// List returns tickets newest first.
func (s *TicketService) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown ticket status %q", filter.Status))
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", filter.Priority))
	}
	tickets, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list tickets")
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}
