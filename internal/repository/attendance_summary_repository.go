package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/smartpass-api/internal/models"
)

// Summarize returns course-wide totals and per-student tallies ordered by name.
func (r *AttendanceRepository) Summarize(ctx context.Context, filter models.AttendanceSummaryFilter) (*models.AttendanceSummary, error) {
	where, args := buildAttendanceSummaryConditions(filter)
	whereClause := strings.Join(where, " AND ")

	totalSQL := fmt.Sprintf(`SELECT
    COALESCE(COUNT(DISTINCT ar.date), 0) AS total_days,
    COALESCE(SUM(CASE WHEN ar.status = 'Present' THEN 1 ELSE 0 END), 0) AS present,
    COALESCE(SUM(CASE WHEN ar.status = 'Late' THEN 1 ELSE 0 END), 0) AS late,
    COALESCE(SUM(CASE WHEN ar.status = 'Absent' THEN 1 ELSE 0 END), 0) AS absent
FROM attendance_records ar
WHERE %s`, whereClause)
	totals := struct {
		TotalDays int `db:"total_days"`
		Present   int `db:"present"`
		Late      int `db:"late"`
		Absent    int `db:"absent"`
	}{}
	if err := r.db.GetContext(ctx, &totals, totalSQL, args...); err != nil {
		return nil, fmt.Errorf("attendance summary totals: %w", err)
	}

	studentsSQL := fmt.Sprintf(`SELECT
    ar.student_id,
    COALESCE(u.name, ar.student_id) AS student_name,
    SUM(CASE WHEN ar.status = 'Present' THEN 1 ELSE 0 END) AS present,
    SUM(CASE WHEN ar.status = 'Late' THEN 1 ELSE 0 END) AS late,
    SUM(CASE WHEN ar.status = 'Absent' THEN 1 ELSE 0 END) AS absent,
    COUNT(*) AS total,
    CASE WHEN COUNT(*) = 0 THEN 0 ELSE (SUM(CASE WHEN ar.status <> 'Absent' THEN 1 ELSE 0 END)::DECIMAL / COUNT(*)) * 100 END AS rate
FROM attendance_records ar
LEFT JOIN users u ON u.id = ar.student_id
WHERE %s
GROUP BY ar.student_id, u.name
ORDER BY student_name ASC`, whereClause)
	var rows []models.StudentAttendanceSummary
	if err := r.db.SelectContext(ctx, &rows, studentsSQL, args...); err != nil {
		return nil, fmt.Errorf("attendance summary per student: %w", err)
	}
	if rows == nil {
		rows = []models.StudentAttendanceSummary{}
	}

	return &models.AttendanceSummary{
		CourseID:  filter.CourseID,
		TotalDays: totals.TotalDays,
		Present:   totals.Present,
		Late:      totals.Late,
		Absent:    totals.Absent,
		Students:  rows,
	}, nil
}

func buildAttendanceSummaryConditions(filter models.AttendanceSummaryFilter) ([]string, []interface{}) {
	ph := &placeholder{}
	conditions := []string{fmt.Sprintf("ar.course_id = $%d", ph.next(filter.CourseID))}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("ar.student_id = $%d", ph.next(filter.StudentID)))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("ar.date >= $%d", ph.next(*filter.DateFrom)))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("ar.date <= $%d", ph.next(*filter.DateTo)))
	}
	return conditions, ph.args
}
