package models

import "time"

// TicketPriority ranks help-desk tickets.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "Low"
	PriorityMedium   TicketPriority = "Medium"
	PriorityHigh     TicketPriority = "High"
	PriorityCritical TicketPriority = "Critical"
)

// Valid returns true when the priority is supported.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// TicketStatus tracks the help-desk lifecycle.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "Open"
	TicketInProgress TicketStatus = "InProgress"
	TicketResolved   TicketStatus = "Resolved"
)

// Valid returns true when the status is supported.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved:
		return true
	default:
		return false
	}
}

// CanTransitionTo allows Open→{InProgress,Resolved} and InProgress→{Open,Resolved}.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	switch s {
	case TicketOpen:
		return next == TicketInProgress || next == TicketResolved
	case TicketInProgress:
		return next == TicketOpen || next == TicketResolved
	default:
		return false
	}
}

// Ticket defaults.
const (
	TicketDefaultCategory = "Other"
	TicketDefaultOwner    = "SU1"
)

// Ticket is a help-desk request.
type Ticket struct {
	ID          string         `db:"id" json:"id"`
	Subject     string         `db:"subject" json:"subject"`
	Category    string         `db:"category" json:"category"`
	Priority    TicketPriority `db:"priority" json:"priority"`
	Details     string         `db:"details" json:"details"`
	OwnerID     string         `db:"owner_id" json:"ownerId"`
	RequestorID string         `db:"requestor_id" json:"requestorId"`
	Status      TicketStatus   `db:"status" json:"status"`
	ResolvedAt  *time.Time     `db:"resolved_at" json:"resolvedAt,omitempty"`
	ResolvedBy  *string        `db:"resolved_by" json:"resolvedBy,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// TicketFilter scopes ticket listings.
type TicketFilter struct {
	Status      TicketStatus
	Priority    TicketPriority
	RequestorID string
}
