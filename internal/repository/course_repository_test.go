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

func TestCourseRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE 1=1 AND professor_id = $1 AND dept = $2 ORDER BY course_id")).
		WithArgs("P1", "CS").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "name", "professor_id", "dept"}).
			AddRow("CS101", "Intro to Programming", "P1", "CS"))

	courses, err := repo.List(context.Background(), models.CourseFilter{ProfessorID: "P1", Dept: "CS"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "CS101", courses[0].ID)
	require.NotNil(t, courses[0].ProfessorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListEnrollmentsByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	enrolled := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND cs.student_id = $1\nORDER BY cs.course_id, student_name")).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "student_id", "student_name", "enrolled_at"}).
			AddRow("BIO200", "S1", "Ana", enrolled).
			AddRow("CS101", "S1", "Ana", enrolled))

	rows, err := repo.ListEnrollments(context.Background(), models.EnrollmentFilter{StudentID: "S1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ana", rows[1].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}
