package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
)

func TestUserRepositoryFindByEmailNormalises(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "dept", "account_status", "created_at", "updated_at"}).
		AddRow("S-1", "Ana Cruz", "a@x.edu", "hash", "Student", "CS", "Active", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("a@x.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "  A@X.edu ")
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, user.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), nil, &models.User{ID: "S-1", Email: "a@x.edu", Role: models.RoleStudent})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepositoryBindCard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (card_number) DO UPDATE")).
		WithArgs("CARD-1", "S-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("S-1"))
	require.NoError(t, repo.BindCard(context.Background(), nil, "CARD-1", "S-1", now))

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (card_number) DO UPDATE")).
		WithArgs("CARD-1", "S-2", now).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("S-1"))
	err := repo.BindCard(context.Background(), nil, "CARD-1", "S-2", now)
	require.True(t, errors.Is(err, ErrCardBound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryResolveCardMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id FROM rfid_cards")).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ResolveCard(context.Background(), "NOPE")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryDeleteRemovesCards(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rfid_cards WHERE student_id = $1")).WithArgs("S-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs("S-1").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), nil, "S-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListCardsByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	bound := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN users u ON u.id = c.student_id WHERE c.student_id = $1 ORDER BY c.bound_at DESC")).
		WithArgs("S-1").
		WillReturnRows(sqlmock.NewRows([]string{"card_number", "student_id", "student_name", "bound_at"}).
			AddRow("CARD-2", "S-1", "Ana Cruz", bound).
			AddRow("CARD-1", "S-1", "Ana Cruz", bound.Add(-time.Hour)))

	cards, err := repo.ListCards(context.Background(), models.CardFilter{StudentID: "S-1"})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	require.Equal(t, "CARD-2", cards[0].CardNumber)
	require.Equal(t, "Ana Cruz", cards[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}
