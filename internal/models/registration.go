package models

import "time"

// DecisionStatus is shared by one-shot approval machines.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "Pending"
	DecisionApproved DecisionStatus = "Approved"
	DecisionRejected DecisionStatus = "Rejected"
)

// Terminal reports whether no further decision is possible.
func (s DecisionStatus) Terminal() bool {
	return s == DecisionApproved || s == DecisionRejected
}

// PendingRegistration is a self-service signup awaiting admin approval.
type PendingRegistration struct {
	ID           string         `db:"id" json:"id"`
	FirstName    string         `db:"first_name" json:"firstName"`
	LastName     string         `db:"last_name" json:"lastName"`
	Email        string         `db:"email" json:"email"`
	Department   string         `db:"department" json:"department"`
	Role         UserRole       `db:"role" json:"role"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Status       DecisionStatus `db:"status" json:"status"`
	DecidedBy    *string        `db:"decided_by" json:"decidedBy,omitempty"`
	DecidedAt    *time.Time     `db:"decided_at" json:"decidedAt,omitempty"`
	UserID       *string        `db:"user_id" json:"userId,omitempty"`
	RequestedAt  time.Time      `db:"requested_at" json:"requestedAt"`
}

// FullName joins the applicant's names.
func (p PendingRegistration) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Approval is an ad-hoc request decided once by an administrator.
type Approval struct {
	ID          string         `db:"id" json:"id"`
	Type        string         `db:"type" json:"type"`
	SubmittedBy string         `db:"submitted_by" json:"submittedBy"`
	Detail      string         `db:"detail" json:"detail"`
	Status      DecisionStatus `db:"status" json:"status"`
	DecidedBy   *string        `db:"decided_by" json:"decidedBy,omitempty"`
	DecidedAt   *time.Time     `db:"decided_at" json:"decidedAt,omitempty"`
	RequestedAt time.Time      `db:"requested_at" json:"requestedAt"`
}

// ApprovalFilter scopes approval listings.
type ApprovalFilter struct {
	Status DecisionStatus
}
