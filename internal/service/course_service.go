package service

import (
	"context"
	"strings"

	"github.com/noah-isme/smartpass-api/internal/models"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error)
}

// CourseService exposes the course catalogue and rosters.
type CourseService struct {
	repo courseStore
}

// NewCourseService constructs the service.
func NewCourseService(repo courseStore) *CourseService {
	return &CourseService{repo: repo}
}

// List returns courses filtered by professor and department.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	filter.ProfessorID = strings.TrimSpace(filter.ProfessorID)
	filter.Dept = strings.TrimSpace(filter.Dept)
	courses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return courses, nil
}

// Enrollments returns roster rows. Students only see their own rows.
func (s *CourseService) Enrollments(ctx context.Context, filter models.EnrollmentFilter, actor models.Actor) ([]models.Enrollment, error) {
	filter.CourseID = strings.TrimSpace(filter.CourseID)
	filter.StudentID = strings.TrimSpace(filter.StudentID)
	if actor.Role == models.RoleStudent {
		if filter.StudentID != "" && filter.StudentID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own enrollments")
		}
		filter.StudentID = actor.ID
	}
	rows, err := s.repo.ListEnrollments(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list enrollments")
	}
	if rows == nil {
		rows = []models.Enrollment{}
	}
	return rows, nil
}
