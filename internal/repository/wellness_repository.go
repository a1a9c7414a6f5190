package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/smartpass-api/internal/models"
)

// WellnessRepository persists append-only mood check-ins.
type WellnessRepository struct {
	db *sqlx.DB
}

// NewWellnessRepository constructs the repository.
func NewWellnessRepository(db *sqlx.DB) *WellnessRepository {
	return &WellnessRepository{db: db}
}

type wellnessRow struct {
	models.WellnessLog
	Factors pq.StringArray `db:"factors"`
}

// Create appends a check-in and assigns its identifier.
func (r *WellnessRepository) Create(ctx context.Context, log *models.WellnessLog) error {
	const query = `INSERT INTO wellness_logs (student_id, date, mood, factors, wants_meeting, slot, note, logged_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.GetContext(ctx, &log.ID, query,
		log.StudentID, log.Date, log.Mood, pq.StringArray(log.Factors), log.WantsMeeting, log.Slot, log.Note, log.LoggedAt,
	); err != nil {
		return fmt.Errorf("create wellness log: %w", err)
	}
	return nil
}

// List returns check-ins newest first.
func (r *WellnessRepository) List(ctx context.Context, filter models.WellnessFilter) ([]models.WellnessLog, error) {
	ph := &placeholder{}
	where := []string{"1=1"}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", ph.next(filter.StudentID)))
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("date = $%d", ph.next(*filter.Date)))
	}
	if filter.Mood != "" {
		where = append(where, fmt.Sprintf("mood = $%d", ph.next(filter.Mood)))
	}
	query := fmt.Sprintf(`SELECT id, student_id, date, mood, factors, wants_meeting, slot, note, logged_at
FROM wellness_logs WHERE %s ORDER BY logged_at DESC, id DESC`, strings.Join(where, " AND "))

	var rows []wellnessRow
	if err := r.db.SelectContext(ctx, &rows, query, ph.args...); err != nil {
		return nil, fmt.Errorf("list wellness logs: %w", err)
	}
	logs := make([]models.WellnessLog, 0, len(rows))
	for _, row := range rows {
		log := row.WellnessLog
		log.Factors = []string(row.Factors)
		if log.Factors == nil {
			log.Factors = []string{}
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// CountByMood buckets a day's check-ins by mood.
func (r *WellnessRepository) CountByMood(ctx context.Context, date time.Time) ([]models.MoodCount, error) {
	const query = `SELECT mood, COUNT(*) AS count FROM wellness_logs WHERE date = $1 GROUP BY mood ORDER BY count DESC, mood`
	var counts []models.MoodCount
	if err := r.db.SelectContext(ctx, &counts, query, date); err != nil {
		return nil, fmt.Errorf("count wellness moods: %w", err)
	}
	return counts, nil
}
