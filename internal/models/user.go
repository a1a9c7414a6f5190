package models

import (
	"strings"
	"time"
)

// UserRole is the closed set of campus roles.
type UserRole string

const (
	RoleStudent    UserRole = "Student"
	RoleProfessor  UserRole = "Professor"
	RoleDeptHead   UserRole = "Department Head"
	RoleCounselor  UserRole = "Counselor"
	RoleSysAdmin   UserRole = "System Admin"
	RoleSuperAdmin UserRole = "Super Admin"
)

// Valid returns true when the role is one of the supported roles.
func (r UserRole) Valid() bool {
	_, ok := r.IDPrefix()
	return ok
}

// IDPrefix maps each role to the prefix used for generated user identifiers.
func (r UserRole) IDPrefix() (string, bool) {
	switch r {
	case RoleStudent:
		return "S", true
	case RoleProfessor:
		return "P", true
	case RoleDeptHead:
		return "DH", true
	case RoleCounselor:
		return "C", true
	case RoleSysAdmin:
		return "SA", true
	case RoleSuperAdmin:
		return "SU", true
	default:
		return "", false
	}
}

// IsAdmin reports whether the role may administer accounts and approvals.
func (r UserRole) IsAdmin() bool {
	return r == RoleSysAdmin || r == RoleSuperAdmin
}

// AccountStatus captures whether a user may sign in.
type AccountStatus string

const (
	AccountActive    AccountStatus = "Active"
	AccountSuspended AccountStatus = "Suspended"
)

// User represents an application user stored in the users table.
type User struct {
	ID            string        `db:"id" json:"id"`
	Name          string        `db:"name" json:"name"`
	Email         string        `db:"email" json:"email"`
	PasswordHash  string        `db:"password_hash" json:"-"`
	Role          UserRole      `db:"role" json:"role"`
	Dept          *string       `db:"dept" json:"dept,omitempty"`
	AccountStatus AccountStatus `db:"account_status" json:"accountStatus"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updatedAt"`
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RFIDBinding associates a physical card with a student.
type RFIDBinding struct {
	CardNumber  string    `db:"card_number" json:"cardNumber"`
	StudentID   string    `db:"student_id" json:"studentId"`
	StudentName string    `db:"student_name" json:"studentName,omitempty"`
	BoundAt     time.Time `db:"bound_at" json:"boundAt"`
}

// CardFilter scopes card listings.
type CardFilter struct {
	StudentID string
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role   *UserRole
	Search string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Actor identifies who is invoking a workflow operation.
type Actor struct {
	ID   string
	Role UserRole
	Name string
}

// Label returns the audit actor label for the identity.
func (a Actor) Label() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.ID != "":
		return a.ID
	default:
		return AuditActorSystem
	}
}
