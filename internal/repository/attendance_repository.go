package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smartpass-api/internal/models"
)

// AttendanceRepository handles persistence for per-course attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

type attendanceUpsertRow struct {
	models.AttendanceRecord
	Inserted bool `db:"inserted"`
}

// Upsert writes the record keyed by (student, course, date) in one statement so
// concurrent writers converge on a single row. inserted is false when an existing
// row was overwritten; its logged_at is preserved.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	const query = `INSERT INTO attendance_records (student_id, course_id, date, status, logged_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (student_id, course_id, date)
DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, course_id, date, status, logged_at, updated_at, (xmax = 0) AS inserted`
	var stored attendanceUpsertRow
	if err := r.db.GetContext(ctx, &stored, query, record.StudentID, record.CourseID, record.Date, record.Status, record.LoggedAt); err != nil {
		return nil, false, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored.AttendanceRecord, stored.Inserted, nil
}

// List returns attendance rows newest date first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	ph := &placeholder{}
	where := []string{"1=1"}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", ph.next(filter.StudentID)))
	}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", ph.next(filter.CourseID)))
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("date = $%d", ph.next(*filter.Date)))
	}
	query := fmt.Sprintf(`SELECT id, student_id, course_id, date, status, logged_at, updated_at
FROM attendance_records WHERE %s
ORDER BY date DESC, id DESC`, strings.Join(where, " AND "))

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, ph.args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}
