package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smartpass-api/internal/models"
)

// CourseRepository reads the course catalogue and rosters.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses ordered by course id.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	ph := &placeholder{}
	conditions := []string{"1=1"}
	if filter.ProfessorID != "" {
		conditions = append(conditions, fmt.Sprintf("professor_id = $%d", ph.next(filter.ProfessorID)))
	}
	if filter.Dept != "" {
		conditions = append(conditions, fmt.Sprintf("dept = $%d", ph.next(filter.Dept)))
	}
	query := fmt.Sprintf(`SELECT course_id, name, professor_id, dept FROM courses WHERE %s ORDER BY course_id`, strings.Join(conditions, " AND "))

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, ph.args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListEnrollments returns roster rows with student names, grouped by course.
func (r *CourseRepository) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	ph := &placeholder{}
	conditions := []string{"1=1"}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.course_id = $%d", ph.next(filter.CourseID)))
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.student_id = $%d", ph.next(filter.StudentID)))
	}
	query := fmt.Sprintf(`SELECT cs.course_id, cs.student_id, COALESCE(u.name, '') AS student_name, cs.enrolled_at
FROM course_students cs
LEFT JOIN users u ON u.id = cs.student_id
WHERE %s
ORDER BY cs.course_id, student_name`, strings.Join(conditions, " AND "))

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, ph.args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}
