package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
	AttendanceLate    AttendanceStatus = "Late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// DateLayout is the calendar-date wire format for attendance and wellness.
const DateLayout = "2006-01-02"

// AttendanceRecord is unique per (student, course, date).
type AttendanceRecord struct {
	ID        int64            `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"studentId"`
	CourseID  string           `db:"course_id" json:"courseId"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	LoggedAt  time.Time        `db:"logged_at" json:"loggedAt"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	StudentID string
	CourseID  string
	Date      *time.Time
}

// AttendanceSummaryFilter scopes a per-course attendance roll-up.
type AttendanceSummaryFilter struct {
	CourseID  string
	StudentID string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// StudentAttendanceSummary is one student's tally. Rate counts Late as attended.
type StudentAttendanceSummary struct {
	StudentID   string  `db:"student_id" json:"studentId"`
	StudentName string  `db:"student_name" json:"studentName"`
	Present     int     `db:"present" json:"present"`
	Late        int     `db:"late" json:"late"`
	Absent      int     `db:"absent" json:"absent"`
	Total       int     `db:"total" json:"total"`
	Rate        float64 `db:"rate" json:"rate"`
}

// AttendanceSummary aggregates a course's ledger over a date range.
type AttendanceSummary struct {
	CourseID  string                     `json:"courseId"`
	TotalDays int                        `json:"totalDays"`
	Present   int                        `json:"present"`
	Late      int                        `json:"late"`
	Absent    int                        `json:"absent"`
	Students  []StudentAttendanceSummary `json:"students"`
}
