package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smartpass-api/internal/models"
)

// AuditRepository appends and queries the audit trail. Rows are never updated.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditRow struct {
	ID        string          `db:"id"`
	Category  string          `db:"category"`
	Action    string          `db:"action"`
	Detail    string          `db:"detail"`
	Actor     string          `db:"actor"`
	Severity  models.Severity `db:"severity"`
	Meta      []byte          `db:"meta"`
	Timestamp time.Time       `db:"timestamp"`
}

func (r auditRow) toModel() (models.AuditEntry, error) {
	entry := models.AuditEntry{
		ID:        r.ID,
		Category:  r.Category,
		Action:    r.Action,
		Detail:    r.Detail,
		Actor:     r.Actor,
		Severity:  r.Severity,
		Timestamp: r.Timestamp,
		Meta:      map[string]interface{}{},
	}
	if len(r.Meta) > 0 {
		if err := json.Unmarshal(r.Meta, &entry.Meta); err != nil {
			return entry, fmt.Errorf("decode audit meta %s: %w", r.ID, err)
		}
	}
	return entry, nil
}

// Append inserts a fully populated entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	meta := entry.Meta
	if meta == nil {
		meta = map[string]interface{}{}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode audit meta: %w", err)
	}
	const query = `INSERT INTO audit_logs (id, category, action, detail, actor, severity, meta, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Category, entry.Action, entry.Detail, entry.Actor, entry.Severity, payload, entry.Timestamp,
	); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// List returns entries newest first; the id breaks timestamp ties.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, category, action, detail, actor, severity, meta, timestamp FROM audit_logs`)

	ph := &placeholder{}
	conditions := make([]string, 0, 2)
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", ph.next(filter.Category)))
	}
	if filter.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", ph.next(filter.Severity)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY timestamp DESC, id DESC")
	builder.WriteString(fmt.Sprintf(" LIMIT $%d", ph.next(filter.Limit)))

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), ph.args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	entries := make([]models.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
