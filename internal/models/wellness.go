package models

import "time"

// MoodNotOkay flags a check-in for counselor follow-up.
const MoodNotOkay = "Not Okay"

// WellnessLog is an append-only mood check-in.
type WellnessLog struct {
	ID           int64     `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"studentId"`
	Date         time.Time `db:"date" json:"date"`
	Mood         string    `db:"mood" json:"mood"`
	Factors      []string  `db:"-" json:"factors"`
	WantsMeeting bool      `db:"wants_meeting" json:"wantsMeeting"`
	Slot         *string   `db:"slot" json:"slot,omitempty"`
	Note         *string   `db:"note" json:"note,omitempty"`
	LoggedAt     time.Time `db:"logged_at" json:"loggedAt"`
}

// WellnessFilter scopes wellness listings.
type WellnessFilter struct {
	StudentID string
	Date      *time.Time
	Mood      string
}

// MoodCount is one bucket of the daily summary.
type MoodCount struct {
	Mood  string `db:"mood" json:"mood"`
	Count int    `db:"count" json:"count"`
}

// WellnessSummary aggregates a day's check-ins for the counselor dashboard.
type WellnessSummary struct {
	Date    string      `json:"date"`
	Summary []MoodCount `json:"summary"`
	Flags   int         `json:"flags"`
}
