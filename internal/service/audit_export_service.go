package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/pkg/jobs"
)

const auditExportJobType = "audit.export"

type auditPublisher interface {
	Publish(ctx context.Context, entry models.AuditEntry) error
}

// AuditExportService publishes appended entries to a downstream stream off the
// request path. Export is best effort: the audit table stays the source of truth.
type AuditExportService struct {
	queue     *jobs.Queue
	publisher auditPublisher
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAuditExportService builds the exporter and its worker queue.
func NewAuditExportService(publisher auditPublisher, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *AuditExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	svc := &AuditExportService{publisher: publisher, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("audit-export", svc.handle, cfg)
	return svc
}

// Start launches the workers.
func (s *AuditExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditExportService) Stop() {
	s.queue.Stop()
}

// Submit schedules entry for publication without blocking.
func (s *AuditExportService) Submit(entry models.AuditEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		s.metrics.RecordAuditExport("dropped")
		s.logger.Warn("audit export encode failed", zap.String("audit_id", entry.ID), zap.Error(err))
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: auditExportJobType, Payload: payload}); err != nil {
		s.metrics.RecordAuditExport("dropped")
		if errors.Is(err, jobs.ErrQueueFull) {
			s.logger.Warn("audit export queue full", zap.String("audit_id", entry.ID))
			return
		}
		s.logger.Warn("audit export enqueue failed", zap.String("audit_id", entry.ID), zap.Error(err))
	}
}

func (s *AuditExportService) handle(ctx context.Context, job jobs.Job) error {
	var entry models.AuditEntry
	if err := json.Unmarshal(job.Payload, &entry); err != nil {
		s.metrics.RecordAuditExport("dropped")
		s.logger.Error("audit export payload undecodable", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	if err := s.publisher.Publish(ctx, entry); err != nil {
		s.metrics.RecordAuditExport("failed")
		return fmt.Errorf("publish audit entry %s: %w", entry.ID, err)
	}
	s.metrics.RecordAuditExport("published")
	return nil
}
