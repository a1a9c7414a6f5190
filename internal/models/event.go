package models

import "time"

// EventStatus tracks a counseling appointment.
type EventStatus string

const (
	EventPending   EventStatus = "Pending"
	EventApproved  EventStatus = "Approved"
	EventRejected  EventStatus = "Rejected"
	EventCompleted EventStatus = "Completed"
)

// Valid returns true when the status is supported.
func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventApproved, EventRejected, EventCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo encodes Pending→{Approved,Rejected} and Approved→Completed.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventPending:
		return next == EventApproved || next == EventRejected
	case EventApproved:
		return next == EventCompleted
	default:
		return false
	}
}

// EventActionRequested seeds every event history.
const EventActionRequested = "Requested"

// EventHistoryEntry is one step in an event's append-only trail.
type EventHistoryEntry struct {
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is a counseling appointment between a student and a counselor.
type Event struct {
	ID           string              `db:"id" json:"id"`
	StudentID    string              `db:"student_id" json:"studentId"`
	CounselorID  string              `db:"counselor_id" json:"counselorId"`
	Mood         string              `db:"mood" json:"mood"`
	MeetingDate  *string             `db:"meeting_date" json:"meetingDate,omitempty"`
	Slot         *string             `db:"slot" json:"slot,omitempty"`
	Note         *string             `db:"note" json:"note,omitempty"`
	ResponseNote *string             `db:"response_note" json:"responseNote,omitempty"`
	Status       EventStatus         `db:"status" json:"status"`
	History      []EventHistoryEntry `db:"-" json:"history"`
	RequestedAt  time.Time           `db:"requested_at" json:"requestedAt"`
}

// EventFilter scopes event listings.
type EventFilter struct {
	StudentID   string
	CounselorID string
	Status      EventStatus
}
