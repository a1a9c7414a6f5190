package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	Enrollments(ctx context.Context, filter models.EnrollmentFilter, actor models.Actor) ([]models.Enrollment, error)
}

// CourseHandler exposes the course catalogue.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param professorId query string false "Professor"
// @Param dept query string false "Department"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.service.List(c.Request.Context(), models.CourseFilter{
		ProfessorID: c.Query("professorId"),
		Dept:        c.Query("dept"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Enrollments godoc
// @Summary List course enrollments
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param courseId query string false "Course"
// @Param studentId query string false "Student"
// @Success 200 {object} response.Envelope
// @Router /courses/enrollments [get]
func (h *CourseHandler) Enrollments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	rows, err := h.service.Enrollments(c.Request.Context(), models.EnrollmentFilter{
		CourseID:  c.Query("courseId"),
		StudentID: c.Query("studentId"),
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
