package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
)

type memoryApprovals struct {
	mu        sync.Mutex
	approvals map[string]*models.Approval
}

func (m *memoryApprovals) Create(ctx context.Context, approval *models.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *approval
	m.approvals[approval.ID] = &clone
	return nil
}

func (m *memoryApprovals) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	approval, ok := m.approvals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *approval
	return &clone, nil
}

func (m *memoryApprovals) List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Approval
	for _, approval := range m.approvals {
		if filter.Status != "" && approval.Status != filter.Status {
			continue
		}
		out = append(out, *approval)
	}
	return out, nil
}

func (m *memoryApprovals) Decide(ctx context.Context, id string, status models.DecisionStatus, decidedBy string, decidedAt time.Time) (*models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	approval, ok := m.approvals[id]
	if !ok || approval.Status != models.DecisionPending {
		return nil, sql.ErrNoRows
	}
	approval.Status = status
	approval.DecidedBy = &decidedBy
	approval.DecidedAt = &decidedAt
	clone := *approval
	return &clone, nil
}

func newApprovalServiceForTest(audit *stubAudit) *ApprovalService {
	clk := newTestClock()
	return NewApprovalService(&memoryApprovals{approvals: map[string]*models.Approval{}}, audit, newTestIDs(clk), clk, nil, nil)
}

func TestApprovalServiceDecideOnce(t *testing.T) {
	audit := &stubAudit{}
	svc := newApprovalServiceForTest(audit)
	ctx := context.Background()

	approval, err := svc.Create(ctx, CreateApprovalRequest{Type: "Policy Exception", Detail: "late drop"}, models.Actor{ID: "P1", Name: "Prof"})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionPending, approval.Status)
	assert.Equal(t, "Prof", approval.SubmittedBy)

	decided, err := svc.Decide(ctx, approval.ID, models.DecisionRejected, models.Actor{ID: "SU1"})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, decided.Status)
	assert.Equal(t, models.SeverityWarning, audit.last(t).Severity)
	auditCount := audit.count()

	_, err = svc.Decide(ctx, approval.ID, models.DecisionApproved, models.Actor{ID: "SU1"})
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyDecided))
	assert.Equal(t, auditCount, audit.count())

	pending, err := svc.List(ctx, models.ApprovalFilter{Status: models.DecisionPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApprovalServiceDecideValidation(t *testing.T) {
	svc := newApprovalServiceForTest(&stubAudit{})
	ctx := context.Background()

	_, err := svc.Decide(ctx, "AP-1", models.DecisionPending, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Decide(ctx, "AP-missing", models.DecisionApproved, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.Create(ctx, CreateApprovalRequest{}, models.Actor{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestApprovalServiceApprovedSeverityInfo(t *testing.T) {
	audit := &stubAudit{}
	svc := newApprovalServiceForTest(audit)
	ctx := context.Background()
	approval, err := svc.Create(ctx, CreateApprovalRequest{Type: "Room Booking"}, models.Actor{ID: "P1"})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, approval.ID, models.DecisionApproved, models.Actor{ID: "SU1"})
	require.NoError(t, err)
	entry := audit.last(t)
	assert.Equal(t, models.SeverityInfo, entry.Severity)
	assert.Equal(t, approval.ID+" → Approved", entry.Detail)
}
