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

func TestApprovalRepositoryDecideOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	requested := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	decided := requested.Add(time.Hour)
	columns := []string{"id", "type", "submitted_by", "detail", "status", "decided_by", "decided_at", "requested_at"}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = 'Pending'")).
		WithArgs("AP-1", models.DecisionRejected, "SU1", decided).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("AP-1", "Room Booking", "P1", "Lab 3", "Rejected", "SU1", decided, requested))
	approval, err := repo.Decide(context.Background(), "AP-1", models.DecisionRejected, "SU1", decided)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, approval.Status)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = 'Pending'")).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Decide(context.Background(), "AP-1", models.DecisionApproved, "SU1", decided)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM approvals WHERE status = $1 ORDER BY requested_at DESC")).
		WithArgs(models.DecisionPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), models.ApprovalFilter{Status: models.DecisionPending})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
