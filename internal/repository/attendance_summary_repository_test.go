package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
)

func TestAttendanceRepositorySummarize(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ar.course_id = $1 AND ar.date >= $2")).
		WithArgs("CS101", from).
		WillReturnRows(sqlmock.NewRows([]string{"total_days", "present", "late", "absent"}).AddRow(3, 4, 1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY ar.student_id, u.name")).
		WithArgs("CS101", from).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "present", "late", "absent", "total", "rate"}).
			AddRow("S1", "Ana", 3, 0, 0, 3, 100.0).
			AddRow("S2", "Ben", 1, 1, 1, 3, 66.67))

	summary, err := repo.Summarize(context.Background(), models.AttendanceSummaryFilter{CourseID: "CS101", DateFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalDays)
	assert.Equal(t, 1, summary.Late)
	require.Len(t, summary.Students, 2)
	assert.Equal(t, "Ben", summary.Students[1].StudentName)
	assert.InDelta(t, 66.67, summary.Students[1].Rate, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySummarizeEmptyCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records ar\nWHERE ar.course_id = $1")).
		WithArgs("BIO200").
		WillReturnRows(sqlmock.NewRows([]string{"total_days", "present", "late", "absent"}).AddRow(0, 0, 0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN users u")).
		WithArgs("BIO200").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "present", "late", "absent", "total", "rate"}))

	summary, err := repo.Summarize(context.Background(), models.AttendanceSummaryFilter{CourseID: "BIO200"})
	require.NoError(t, err)
	assert.NotNil(t, summary.Students)
	assert.Empty(t, summary.Students)
}
