package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/export"
)

type attendanceStore interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	Summarize(ctx context.Context, filter models.AttendanceSummaryFilter) (*models.AttendanceSummary, error)
}

type studentDirectory interface {
	DisplayName(ctx context.Context, id string) (string, error)
	ResolveCard(ctx context.Context, cardNumber string) (string, error)
}

// RecordAttendanceRequest marks one student for one course on one day.
type RecordAttendanceRequest struct {
	StudentID string                  `json:"studentId"`
	CourseID  string                  `json:"courseId"`
	Date      string                  `json:"date"`
	Status    models.AttendanceStatus `json:"status"`
}

// ScanRequest is an RFID reader event.
type ScanRequest struct {
	CardNumber string                  `json:"cardNumber"`
	CourseID   string                  `json:"courseId"`
	Date       string                  `json:"date"`
	Status     models.AttendanceStatus `json:"status"`
}

// AttendanceService maintains the per (student, course, date) ledger.
type AttendanceService struct {
	repo      attendanceStore
	directory studentDirectory
	audit     auditAppender
	clock     clock.Clock
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAttendanceService constructs the ledger.
func NewAttendanceService(repo attendanceStore, directory studentDirectory, audit auditAppender, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &AttendanceService{repo: repo, directory: directory, audit: audit, clock: clk, metrics: metrics, logger: logger}
}

// Record upserts the status for the composite key. Re-scans overwrite the status of
// the existing row. An empty date means today.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) (*models.AttendanceRecord, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.CourseID = strings.TrimSpace(req.CourseID)
	if req.StudentID == "" || req.CourseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", req.Status))
	}
	now := s.clock.Now()
	date, err := parseDay(req.Date, now)
	if err != nil {
		return nil, err
	}

	stored, inserted, err := s.repo.Upsert(ctx, &models.AttendanceRecord{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Date:      date,
		Status:    req.Status,
		LoggedAt:  now,
	})
	if err != nil {
		s.metrics.RecordTransition("attendance", string(req.Status), "store_unavailable")
		return nil, appErrors.Unavailable(err, "failed to record attendance")
	}
	s.metrics.RecordTransition("attendance", string(req.Status), outcomeApplied)

	name, err := s.directory.DisplayName(ctx, req.StudentID)
	actor := name
	if err != nil {
		s.logger.Warn("attendance name lookup failed, using fallback actor",
			zap.String("student_id", req.StudentID), zap.Error(err))
		name = req.StudentID
		actor = models.AuditActorSystem
	}
	severity := models.SeverityInfo
	if req.Status == models.AttendanceAbsent {
		severity = models.SeverityWarning
	}
	if err := recordAudit(ctx, s.audit, s.metrics, s.logger, "attendance record", AuditInput{
		Category: models.AuditCategoryAttendance,
		Action:   "RFID Log",
		Detail:   fmt.Sprintf("%s marked %s for %s on %s", name, req.Status, req.CourseID, date.Format(models.DateLayout)),
		Actor:    actor,
		Severity: severity,
		Meta: map[string]interface{}{
			"recordId":  stored.ID,
			"studentId": req.StudentID,
			"courseId":  req.CourseID,
			"inserted":  inserted,
		},
	}); err != nil {
		return stored, err
	}
	return stored, nil
}

// Scan resolves a card to its student and records attendance.
func (s *AttendanceService) Scan(ctx context.Context, req ScanRequest) (*models.AttendanceRecord, error) {
	studentID, err := s.directory.ResolveCard(ctx, req.CardNumber)
	if err != nil {
		return nil, err
	}
	return s.Record(ctx, RecordAttendanceRequest{StudentID: studentID, CourseID: req.CourseID, Date: req.Date, Status: req.Status})
}

// List returns records newest date first, then newest record first.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list attendance")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return records, nil
}

// Summary tallies a course's ledger per student within an optional date range.
func (s *AttendanceService) Summary(ctx context.Context, filter models.AttendanceSummaryFilter) (*models.AttendanceSummary, error) {
	filter.CourseID = strings.TrimSpace(filter.CourseID)
	if filter.CourseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	summary, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to summarize attendance")
	}
	return summary, nil
}

// Export renders the filtered ledger as csv or pdf.
func (s *AttendanceService) Export(ctx context.Context, filter models.AttendanceFilter, format string) (*ExportFile, error) {
	renderer, err := export.ForFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, validationError(err, "unsupported export format")
	}
	records, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{Headers: []string{"Date", "Student", "Course", "Status", "Logged At"}}
	for _, record := range records {
		data.AddRow(record.Date.Format(models.DateLayout), record.StudentID, record.CourseID, string(record.Status), record.UpdatedAt.Format(time.RFC3339))
	}
	body, err := renderer.Render(data, "Attendance")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("attendance-%s.%s", s.clock.Now().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// parseDay reads a YYYY-MM-DD date; blank means the day of now.
func parseDay(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, validationError(err, "date must be YYYY-MM-DD")
	}
	return date, nil
}
