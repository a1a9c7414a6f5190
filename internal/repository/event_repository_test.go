package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
)

var eventRowColumns = []string{"id", "student_id", "counselor_id", "mood", "meeting_date", "slot", "note", "response_note", "status", "history", "requested_at"}

func TestEventRepositoryTransitionAppendsHistory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	requested := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	responded := requested.Add(time.Hour)
	entry := models.EventHistoryEntry{Action: "Approved", Detail: "see you then", Timestamp: responded}
	slot := "10:00"

	history := `[{"action":"Requested","timestamp":"2024-03-01T08:00:00Z"},{"action":"Approved","detail":"see you then","timestamp":"2024-03-01T09:00:00Z"}]`
	mock.ExpectQuery(regexp.QuoteMeta("history = history || $10::jsonb")).
		WithArgs("EV-1", models.EventPending, models.EventApproved, false, nil, true, slot, false, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(eventRowColumns).
			AddRow("EV-1", "S1", "C1", "Stressed", nil, slot, nil, nil, "Approved", []byte(history), requested))

	event, err := repo.Transition(context.Background(), "EV-1", models.EventPending, models.EventApproved, EventUpdate{Slot: models.SomeString(slot)}, entry)
	require.NoError(t, err)
	assert.Equal(t, models.EventApproved, event.Status)
	require.Len(t, event.History, 2)
	assert.Equal(t, "Approved", event.History[1].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryTransitionClearsNullFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	requested := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	history := `[{"action":"Requested","timestamp":"2024-03-01T08:00:00Z"},{"action":"Approved","timestamp":"2024-03-01T09:00:00Z"}]`
	mock.ExpectQuery(regexp.QuoteMeta("slot = CASE WHEN $6::boolean THEN $7::text ELSE slot END")).
		WithArgs("EV-1", models.EventPending, models.EventApproved, false, nil, true, nil, false, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(eventRowColumns).
			AddRow("EV-1", "S1", "C1", "Stressed", "2024-03-04", nil, nil, nil, "Approved", []byte(history), requested))

	event, err := repo.Transition(context.Background(), "EV-1", models.EventPending, models.EventApproved,
		EventUpdate{Slot: models.NullString()}, models.EventHistoryEntry{Action: "Approved", Timestamp: requested.Add(time.Hour)})
	require.NoError(t, err)
	assert.Nil(t, event.Slot)
	require.NotNil(t, event.MeetingDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryTransitionLostRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Transition(context.Background(), "EV-1", models.EventPending, models.EventRejected, EventUpdate{}, models.EventHistoryEntry{Action: "Rejected"})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEventRepositoryCreateEncodesHistory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEventRepository(db)
	requested := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	event := &models.Event{
		ID: "EV-1", StudentID: "S1", CounselorID: "C1", Mood: "Okay", Status: models.EventPending, RequestedAt: requested,
		History: []models.EventHistoryEntry{{Action: models.EventActionRequested, Timestamp: requested}},
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO counseling_events")).
		WithArgs("EV-1", "S1", "C1", "Okay", nil, nil, nil, models.EventPending,
			[]byte(`[{"action":"Requested","timestamp":"2024-03-01T08:00:00Z"}]`), requested).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}
