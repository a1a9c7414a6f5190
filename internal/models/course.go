package models

import "time"

// Course is a catalogue entry attendance is recorded against.
type Course struct {
	ID          string  `db:"course_id" json:"courseId"`
	Name        string  `db:"name" json:"name"`
	ProfessorID *string `db:"professor_id" json:"professorId,omitempty"`
	Dept        *string `db:"dept" json:"dept,omitempty"`
}

// CourseFilter scopes course listings.
type CourseFilter struct {
	ProfessorID string
	Dept        string
}

// Enrollment places a student on a course roster.
type Enrollment struct {
	CourseID    string    `db:"course_id" json:"courseId"`
	StudentID   string    `db:"student_id" json:"studentId"`
	StudentName string    `db:"student_name" json:"studentName,omitempty"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolledAt"`
}

// EnrollmentFilter scopes roster listings.
type EnrollmentFilter struct {
	CourseID  string
	StudentID string
}
