package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
)

type wellnessStore interface {
	Create(ctx context.Context, log *models.WellnessLog) error
	List(ctx context.Context, filter models.WellnessFilter) ([]models.WellnessLog, error)
	CountByMood(ctx context.Context, date time.Time) ([]models.MoodCount, error)
}

// WellnessCheckIn is a student's mood submission.
type WellnessCheckIn struct {
	Date         string   `json:"date"`
	Mood         string   `json:"mood"`
	Factors      []string `json:"factors"`
	WantsMeeting bool     `json:"wantsMeeting"`
	Slot         *string  `json:"slot"`
	Note         *string  `json:"note"`
}

// WellnessService records append-only mood check-ins.
type WellnessService struct {
	repo      wellnessStore
	directory userDirectory
	audit     auditAppender
	clock     clock.Clock
	logger    *zap.Logger
}

// NewWellnessService constructs the service.
func NewWellnessService(repo wellnessStore, directory userDirectory, audit auditAppender, clk clock.Clock, logger *zap.Logger) *WellnessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &WellnessService{repo: repo, directory: directory, audit: audit, clock: clk, logger: logger}
}

// Submit appends a check-in for the acting student.
func (s *WellnessService) Submit(ctx context.Context, req WellnessCheckIn, actor models.Actor) (*models.WellnessLog, error) {
	req.Mood = strings.TrimSpace(req.Mood)
	if req.Mood == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mood is required")
	}
	student, err := s.directory.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || appErrors.HasCode(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can log wellness")
		}
		return nil, appErrors.Unavailable(err, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can log wellness")
	}
	now := s.clock.Now()
	date, err := parseDay(req.Date, now)
	if err != nil {
		return nil, err
	}

	log := &models.WellnessLog{
		StudentID:    student.ID,
		Date:         date,
		Mood:         req.Mood,
		Factors:      dedupe(req.Factors),
		WantsMeeting: req.WantsMeeting,
		Slot:         req.Slot,
		Note:         req.Note,
		LoggedAt:     now,
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return nil, appErrors.Unavailable(err, "failed to log wellness")
	}

	detail := fmt.Sprintf("%s → %s", student.Name, log.Mood)
	if log.WantsMeeting {
		detail += " (wants meeting)"
	}
	if err := recordAudit(ctx, s.audit, nil, s.logger, "wellness check-in", AuditInput{
		Category: models.AuditCategoryWellness,
		Action:   "Mood Logged",
		Detail:   detail,
		Actor:    student.Name,
		Severity: models.SeverityInfo,
		Meta:     map[string]interface{}{"logId": log.ID, "studentId": student.ID},
	}); err != nil {
		return log, err
	}
	return log, nil
}

// List returns check-ins newest first.
func (s *WellnessService) List(ctx context.Context, filter models.WellnessFilter) ([]models.WellnessLog, error) {
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list wellness logs")
	}
	if logs == nil {
		logs = []models.WellnessLog{}
	}
	return logs, nil
}

// Summary buckets a day's moods and counts check-ins needing follow-up.
func (s *WellnessService) Summary(ctx context.Context, rawDate string) (*models.WellnessSummary, error) {
	date, err := parseDay(rawDate, s.clock.Now())
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByMood(ctx, date)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to summarise wellness")
	}
	logs, err := s.repo.List(ctx, models.WellnessFilter{Date: &date})
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to summarise wellness")
	}
	flags := 0
	for _, log := range logs {
		if log.Mood == models.MoodNotOkay || log.WantsMeeting {
			flags++
		}
	}
	if counts == nil {
		counts = []models.MoodCount{}
	}
	return &models.WellnessSummary{Date: date.Format(models.DateLayout), Summary: counts, Flags: flags}, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
