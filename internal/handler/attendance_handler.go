package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/service"
	"github.com/noah-isme/smartpass-api/pkg/response"
)

type attendanceService interface {
	Record(ctx context.Context, req service.RecordAttendanceRequest) (*models.AttendanceRecord, error)
	Scan(ctx context.Context, req service.ScanRequest) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	Export(ctx context.Context, filter models.AttendanceFilter, format string) (*service.ExportFile, error)
	Summary(ctx context.Context, filter models.AttendanceSummaryFilter) (*models.AttendanceSummary, error)
}

// AttendanceHandler exposes the attendance ledger.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Record godoc
// @Summary Record attendance for a student, course and day
// @Description Re-recording the same key overwrites the status
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RecordAttendanceRequest true "Attendance"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	record, err := h.service.Record(c.Request.Context(), req)
	respondMutation(c, http.StatusOK, record, err)
}

// Scan godoc
// @Summary Record attendance from an RFID reader
// @Tags Attendance
// @Accept json
// @Produce json
// @Param X-Reader-ID header string false "Reader identifier"
// @Param payload body service.ScanRequest true "Scan"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var req service.ScanRequest
	if !bindJSON(c, &req, "invalid scan payload") {
		return
	}
	record, err := h.service.Scan(c.Request.Context(), req)
	respondMutation(c, http.StatusOK, record, err)
}

// List godoc
// @Summary List attendance newest first
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student"
// @Param courseId query string false "Course"
// @Param date query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter, ok := attendanceFilter(c)
	if !ok {
		return
	}
	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Export godoc
// @Summary Download attendance as CSV or PDF
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	filter, ok := attendanceFilter(c)
	if !ok {
		return
	}
	file, err := h.service.Export(c.Request.Context(), filter, exportFormat(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

// Summary godoc
// @Summary Per-student attendance tallies for a course
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param courseId query string true "Course"
// @Param studentId query string false "Student"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), models.AttendanceSummaryFilter{
		CourseID:  strings.TrimSpace(c.Query("courseId")),
		StudentID: strings.TrimSpace(c.Query("studentId")),
		DateFrom:  from,
		DateTo:    to,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

func attendanceFilter(c *gin.Context) (models.AttendanceFilter, bool) {
	date, ok := queryDate(c, "date")
	if !ok {
		return models.AttendanceFilter{}, false
	}
	return models.AttendanceFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		CourseID:  strings.TrimSpace(c.Query("courseId")),
		Date:      date,
	}, true
}
