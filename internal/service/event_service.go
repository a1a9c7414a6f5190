package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/repository"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/ids"
)

type eventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	Transition(ctx context.Context, id string, from, to models.EventStatus, update repository.EventUpdate, entry models.EventHistoryEntry) (*models.Event, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// EventRequest is a student's counseling request.
type EventRequest struct {
	CounselorID string  `json:"counselorId"`
	Mood        string  `json:"mood"`
	MeetingDate *string `json:"meetingDate"`
	Slot        *string `json:"slot"`
	Note        *string `json:"note"`
}

// EventResponse is a counselor's decision. Omitted optional fields keep their
// stored value; fields sent as null are cleared.
type EventResponse struct {
	Status       models.EventStatus    `json:"status"`
	ResponseNote models.OptionalString `json:"responseNote" swaggertype:"string"`
	MeetingDate  models.OptionalString `json:"meetingDate" swaggertype:"string"`
	Slot         models.OptionalString `json:"slot" swaggertype:"string"`
}

// EventService runs the counseling appointment lifecycle.
type EventService struct {
	repo      eventStore
	directory userDirectory
	audit     auditAppender
	ids       *ids.Generator
	clock     clock.Clock
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEventService constructs the workflow.
func NewEventService(repo eventStore, directory userDirectory, audit auditAppender, gen *ids.Generator, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if gen == nil {
		gen = ids.NewGenerator(clk)
	}
	return &EventService{repo: repo, directory: directory, audit: audit, ids: gen, clock: clk, metrics: metrics, logger: logger}
}

// Request opens a Pending event on behalf of the requesting student. Anyone who is
// not a known Student is refused before anything is written.
func (s *EventService) Request(ctx context.Context, req EventRequest, actor models.Actor) (*models.Event, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request counseling")
	}
	student, err := s.directory.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || appErrors.HasCode(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request counseling")
		}
		return nil, appErrors.Unavailable(err, "failed to load requester")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request counseling")
	}

	req.CounselorID = strings.TrimSpace(req.CounselorID)
	req.Mood = strings.TrimSpace(req.Mood)
	if req.CounselorID == "" || req.Mood == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "counselorId and mood are required")
	}
	counselor, err := s.directory.FindByID(ctx, req.CounselorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || appErrors.HasCode(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "counselor not found")
		}
		return nil, appErrors.Unavailable(err, "failed to load counselor")
	}
	if counselor.Role != models.RoleCounselor {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assigned user is not a counselor")
	}

	now := s.clock.Now()
	event := &models.Event{
		ID:          s.ids.Prefixed("EV"),
		StudentID:   student.ID,
		CounselorID: counselor.ID,
		Mood:        req.Mood,
		MeetingDate: req.MeetingDate,
		Slot:        req.Slot,
		Note:        req.Note,
		Status:      models.EventPending,
		History:     []models.EventHistoryEntry{{Action: models.EventActionRequested, Timestamp: now}},
		RequestedAt: now,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Unavailable(err, "failed to create event")
	}
	s.metrics.RecordTransition("event", string(models.EventPending), outcomeApplied)

	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "counseling request", AuditInput{
		Category: models.AuditCategoryWellness,
		Action:   "Appointment Requested",
		Detail:   fmt.Sprintf("%s requested counseling meeting", student.Name),
		Actor:    student.Name,
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"eventId": event.ID, "counselorId": counselor.ID},
	}); err != nil {
		return event, err
	}
	return event, nil
}

// Respond applies the assigned counselor's decision and appends it to the history.
func (s *EventService) Respond(ctx context.Context, id string, req EventResponse, actor models.Actor) (*models.Event, error) {
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown event status %q", req.Status))
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "event not found", "failed to load event")
	}
	if actor.ID == "" || actor.ID != current.CounselorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned counselor can respond to this event")
	}
	if !current.Status.CanTransitionTo(req.Status) {
		s.metrics.RecordTransition("event", string(req.Status), outcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("event cannot move from %s to %s", current.Status, req.Status))
	}

	entry := models.EventHistoryEntry{Action: string(req.Status), Timestamp: s.clock.Now()}
	if req.ResponseNote.Value != nil {
		entry.Detail = *req.ResponseNote.Value
	}
	updated, err := s.repo.Transition(ctx, id, current.Status, req.Status, repository.EventUpdate{
		MeetingDate:  req.MeetingDate,
		Slot:         req.Slot,
		ResponseNote: req.ResponseNote,
	}, entry)
	if err != nil {
		s.metrics.RecordTransition("event", string(req.Status), outcomeRejected)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "event status changed concurrently")
		}
		return nil, appErrors.Unavailable(err, "failed to update event")
	}
	s.metrics.RecordTransition("event", string(req.Status), outcomeApplied)

	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "counseling response", AuditInput{
		Category: models.AuditCategoryWellness,
		Action:   "Appointment " + string(req.Status),
		Detail:   fmt.Sprintf("Event %s marked %s (%s → %s)", id, req.Status, current.Status, req.Status),
		Actor:    actor.Label(),
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"eventId": id, "from": string(current.Status), "to": string(req.Status)},
	}); err != nil {
		return updated, err
	}
	return updated, nil
}

// Get loads one event.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "event not found", "failed to load event")
	}
	return event, nil
}

// List returns events newest first.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown event status %q", filter.Status))
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list events")
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}
