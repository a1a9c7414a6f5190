package models

import "time"

// Severity ranks audit entries for dashboards and alerting.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// Valid returns true when the severity is supported.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Audit categories emitted by the workflow services.
const (
	AuditCategorySystem     = "System"
	AuditCategoryAttendance = "Attendance"
	AuditCategoryWellness   = "Wellness"
	AuditCategoryTickets    = "Tickets"
	AuditCategoryApprovals  = "Approvals"
	AuditCategoryMessages   = "Messages"
)

// AuditActorSystem is the fallback actor label when no identity can be resolved.
const AuditActorSystem = "System"

// AuditEntry is an immutable record of a state-changing action. Its JSON shape is the
// export contract consumed by downstream tooling.
type AuditEntry struct {
	ID        string                 `db:"id" json:"id"`
	Category  string                 `db:"category" json:"category"`
	Action    string                 `db:"action" json:"action"`
	Detail    string                 `db:"detail" json:"detail"`
	Actor     string                 `db:"actor" json:"actor"`
	Severity  Severity               `db:"severity" json:"severity"`
	Meta      map[string]interface{} `db:"-" json:"meta"`
	Timestamp time.Time              `db:"timestamp" json:"timestamp"`
}

// AuditFilter scopes audit queries.
type AuditFilter struct {
	Category string
	Severity Severity
	Limit    int
}
