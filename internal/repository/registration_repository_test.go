package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
)

func TestRegistrationRepositoryDecideCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	decidedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	userID := "S-01HX"

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'Pending'")).
		WithArgs("REG-1", models.DecisionApproved, "SA1", decidedAt, &userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Decide(context.Background(), nil, "REG-1", models.DecisionApproved, "SA1", decidedAt, &userID))

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'Pending'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Decide(context.Background(), nil, "REG-1", models.DecisionRejected, "SA1", decidedAt, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryListPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "department", "role", "password_hash", "status", "decided_by", "decided_at", "user_id", "requested_at"}).
		AddRow("REG-1", "Ana", "Cruz", "a@x.edu", "CS", "Student", "hash", "Pending", nil, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM pending_registrations WHERE status = $1")).
		WithArgs(models.DecisionPending).
		WillReturnRows(rows)

	regs, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, "Ana Cruz", regs[0].FullName())
	require.Nil(t, regs[0].DecidedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}
