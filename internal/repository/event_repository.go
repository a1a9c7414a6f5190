package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smartpass-api/internal/models"
)

const eventColumns = `id, student_id, counselor_id, mood, meeting_date, slot, note, response_note, status, history, requested_at`

// EventRepository persists counseling events with their append-only history.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

type eventRow struct {
	ID           string             `db:"id"`
	StudentID    string             `db:"student_id"`
	CounselorID  string             `db:"counselor_id"`
	Mood         string             `db:"mood"`
	MeetingDate  *string            `db:"meeting_date"`
	Slot         *string            `db:"slot"`
	Note         *string            `db:"note"`
	ResponseNote *string            `db:"response_note"`
	Status       models.EventStatus `db:"status"`
	History      []byte             `db:"history"`
	RequestedAt  time.Time          `db:"requested_at"`
}

func (r eventRow) toModel() (*models.Event, error) {
	event := &models.Event{
		ID:           r.ID,
		StudentID:    r.StudentID,
		CounselorID:  r.CounselorID,
		Mood:         r.Mood,
		MeetingDate:  r.MeetingDate,
		Slot:         r.Slot,
		Note:         r.Note,
		ResponseNote: r.ResponseNote,
		Status:       r.Status,
		RequestedAt:  r.RequestedAt,
		History:      []models.EventHistoryEntry{},
	}
	if len(r.History) > 0 {
		if err := json.Unmarshal(r.History, &event.History); err != nil {
			return nil, fmt.Errorf("decode event history %s: %w", r.ID, err)
		}
	}
	return event, nil
}

// EventUpdate carries the optional fields a counselor response may overwrite.
// Unset fields keep their stored value; set fields with a nil value are cleared.
type EventUpdate struct {
	MeetingDate  models.OptionalString
	Slot         models.OptionalString
	ResponseNote models.OptionalString
}

// Create inserts a Pending event together with its seed history.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	history, err := json.Marshal(event.History)
	if err != nil {
		return fmt.Errorf("encode event history: %w", err)
	}
	const query = `INSERT INTO counseling_events (id, student_id, counselor_id, mood, meeting_date, slot, note, status, history, requested_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query,
		event.ID, event.StudentID, event.CounselorID, event.Mood, event.MeetingDate, event.Slot, event.Note, event.Status, history, event.RequestedAt,
	); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetByID loads a single event; returns sql.ErrNoRows when absent.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM counseling_events WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return row.toModel()
}

// List returns events newest first.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	ph := &placeholder{}
	where := []string{"1=1"}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", ph.next(filter.StudentID)))
	}
	if filter.CounselorID != "" {
		where = append(where, fmt.Sprintf("counselor_id = $%d", ph.next(filter.CounselorID)))
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", ph.next(filter.Status)))
	}
	query := fmt.Sprintf(`SELECT %s FROM counseling_events WHERE %s ORDER BY requested_at DESC, id DESC`, eventColumns, strings.Join(where, " AND "))

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, ph.args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, nil
}

// Transition moves an event from one status to the next and appends entry to its
// history in a single statement. The status guard makes concurrent responders
// race on the row: the loser sees sql.ErrNoRows.
func (r *EventRepository) Transition(ctx context.Context, id string, from, to models.EventStatus, update EventUpdate, entry models.EventHistoryEntry) (*models.Event, error) {
	appended, err := json.Marshal([]models.EventHistoryEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("encode event history entry: %w", err)
	}
	query := `UPDATE counseling_events
	SET status = $3,
		meeting_date = CASE WHEN $4::boolean THEN $5::text ELSE meeting_date END,
		slot = CASE WHEN $6::boolean THEN $7::text ELSE slot END,
		response_note = CASE WHEN $8::boolean THEN $9::text ELSE response_note END,
		history = history || $10::jsonb
	WHERE id = $1 AND status = $2
	RETURNING ` + eventColumns
	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id, from, to,
		update.MeetingDate.Set, update.MeetingDate.Value,
		update.Slot.Set, update.Slot.Value,
		update.ResponseNote.Set, update.ResponseNote.Value,
		appended,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("transition event: %w", err)
	}
	return row.toModel()
}
