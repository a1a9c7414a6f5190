package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/export"
	"github.com/noah-isme/smartpass-api/pkg/ids"
)

type auditStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}

type auditExporter interface {
	Submit(entry models.AuditEntry)
}

// AuditInput describes an entry before the log assigns its id and timestamp.
type AuditInput struct {
	Category string                 `json:"category" validate:"required"`
	Action   string                 `json:"action" validate:"required"`
	Detail   string                 `json:"detail"`
	Actor    string                 `json:"actor"`
	Severity models.Severity        `json:"severity"`
	Meta     map[string]interface{} `json:"meta"`
}

// AuditConfig bounds audit queries.
type AuditConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// AuditService is the append-only sink every workflow writes to.
type AuditService struct {
	repo     auditStore
	ids      *ids.Generator
	clock    clock.Clock
	cfg      AuditConfig
	exporter auditExporter
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewAuditService constructs the audit log.
func NewAuditService(repo auditStore, gen *ids.Generator, clk clock.Clock, cfg AuditConfig, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if gen == nil {
		gen = ids.NewGenerator(clk)
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 2000
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(500, cfg.MaxLimit)
	}
	return &AuditService{repo: repo, ids: gen, clock: clk, cfg: cfg, metrics: metrics, logger: logger}
}

// SetExporter mirrors every appended entry to exp.
func (s *AuditService) SetExporter(exp auditExporter) {
	s.exporter = exp
}

// Append stamps and persists an entry. Only a store failure makes it fail.
func (s *AuditService) Append(ctx context.Context, input AuditInput) (*models.AuditEntry, error) {
	input.Category = strings.TrimSpace(input.Category)
	input.Action = strings.TrimSpace(input.Action)
	if input.Category == "" || input.Action == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category and action are required")
	}
	if input.Severity == "" {
		input.Severity = models.SeverityInfo
	}
	if !input.Severity.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown severity %q", input.Severity))
	}
	if strings.TrimSpace(input.Actor) == "" {
		input.Actor = models.AuditActorSystem
	}
	if input.Meta == nil {
		input.Meta = map[string]interface{}{}
	}

	entry := &models.AuditEntry{
		ID:        s.ids.Prefixed("LOG"),
		Category:  input.Category,
		Action:    input.Action,
		Detail:    input.Detail,
		Actor:     input.Actor,
		Severity:  input.Severity,
		Meta:      input.Meta,
		Timestamp: s.clock.Now(),
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, appErrors.Unavailable(err, "failed to append audit entry")
	}
	s.metrics.RecordAuditAppend(entry.Category, string(entry.Severity))
	if s.exporter != nil {
		s.exporter.Submit(*entry)
	}
	return entry, nil
}

// Query returns entries newest first, capped by the configured limits.
func (s *AuditService) Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	if filter.Severity != "" && !filter.Severity.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown severity %q", filter.Severity))
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = s.cfg.DefaultLimit
	case filter.Limit > s.cfg.MaxLimit:
		filter.Limit = s.cfg.MaxLimit
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to query audit log")
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}

// Export renders the filtered log as csv or pdf.
func (s *AuditService) Export(ctx context.Context, filter models.AuditFilter, format string) (*ExportFile, error) {
	renderer, err := export.ForFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, validationError(err, "unsupported export format")
	}
	entries, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{Headers: []string{"ID", "Timestamp", "Category", "Action", "Detail", "Actor", "Severity"}}
	for _, entry := range entries {
		data.AddRow(entry.ID, entry.Timestamp.Format(time.RFC3339), entry.Category, entry.Action, entry.Detail, entry.Actor, string(entry.Severity))
	}
	body, err := renderer.Render(data, "Audit Log")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("audit-%s.%s", s.clock.Now().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}
