package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
)

// memoryAttendance mirrors the ON CONFLICT upsert: one row per composite key.
type memoryAttendance struct {
	mu     sync.Mutex
	rows   map[string]*models.AttendanceRecord
	nextID int64
	err    error
}

func newMemoryAttendance() *memoryAttendance {
	return &memoryAttendance{rows: map[string]*models.AttendanceRecord{}}
}

func (m *memoryAttendance) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	key := fmt.Sprintf("%s|%s|%s", record.StudentID, record.CourseID, record.Date.Format(models.DateLayout))
	if existing, ok := m.rows[key]; ok {
		existing.Status = record.Status
		existing.UpdatedAt = record.LoggedAt
		clone := *existing
		return &clone, false, nil
	}
	m.nextID++
	stored := *record
	stored.ID = m.nextID
	stored.UpdatedAt = record.LoggedAt
	m.rows[key] = &stored
	clone := stored
	return &clone, true, nil
}

func (m *memoryAttendance) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AttendanceRecord
	for _, r := range m.rows {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && r.CourseID != filter.CourseID {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryAttendance) Summarize(ctx context.Context, filter models.AttendanceSummaryFilter) (*models.AttendanceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	summary := &models.AttendanceSummary{CourseID: filter.CourseID, Students: []models.StudentAttendanceSummary{}}
	days := map[string]struct{}{}
	perStudent := map[string]*models.StudentAttendanceSummary{}
	for _, r := range m.rows {
		if r.CourseID != filter.CourseID {
			continue
		}
		if filter.DateFrom != nil && r.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && r.Date.After(*filter.DateTo) {
			continue
		}
		days[r.Date.Format(models.DateLayout)] = struct{}{}
		row, ok := perStudent[r.StudentID]
		if !ok {
			row = &models.StudentAttendanceSummary{StudentID: r.StudentID, StudentName: r.StudentID}
			perStudent[r.StudentID] = row
		}
		row.Total++
		switch r.Status {
		case models.AttendancePresent:
			row.Present++
			summary.Present++
		case models.AttendanceLate:
			row.Late++
			summary.Late++
		case models.AttendanceAbsent:
			row.Absent++
			summary.Absent++
		}
	}
	summary.TotalDays = len(days)
	for _, row := range perStudent {
		row.Rate = float64(row.Present+row.Late) / float64(row.Total) * 100
		summary.Students = append(summary.Students, *row)
	}
	sort.Slice(summary.Students, func(i, j int) bool { return summary.Students[i].StudentName < summary.Students[j].StudentName })
	return summary, nil
}

type stubDirectory struct {
	names   map[string]string
	cards   map[string]string
	nameErr error
}

func (s *stubDirectory) DisplayName(ctx context.Context, id string) (string, error) {
	if s.nameErr != nil {
		return "", s.nameErr
	}
	name, ok := s.names[id]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return name, nil
}

func (s *stubDirectory) ResolveCard(ctx context.Context, cardNumber string) (string, error) {
	id, ok := s.cards[cardNumber]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "card not registered")
	}
	return id, nil
}

func newAttendanceServiceForTest(store *memoryAttendance, dir *stubDirectory, audit *stubAudit) *AttendanceService {
	return NewAttendanceService(store, dir, audit, newTestClock(), nil, nil)
}

func TestAttendanceServiceRecordOverwritesStatus(t *testing.T) {
	store := newMemoryAttendance()
	audit := &stubAudit{}
	svc := newAttendanceServiceForTest(store, &stubDirectory{names: map[string]string{"S1": "Ana"}}, audit)
	ctx := context.Background()

	first, err := svc.Record(ctx, RecordAttendanceRequest{StudentID: "S1", CourseID: "C1", Date: "2024-01-01", Status: models.AttendancePresent})
	require.NoError(t, err)
	second, err := svc.Record(ctx, RecordAttendanceRequest{StudentID: "S1", CourseID: "C1", Date: "2024-01-01", Status: models.AttendanceAbsent})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	rows, err := svc.List(ctx, models.AttendanceFilter{StudentID: "S1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AttendanceAbsent, rows[0].Status)

	entry := audit.last(t)
	assert.Equal(t, models.SeverityWarning, entry.Severity)
	assert.Equal(t, "Ana", entry.Actor)
	assert.Equal(t, "Ana marked Absent for C1 on 2024-01-01", entry.Detail)
}

func TestAttendanceServiceConcurrentRecordsKeepOneRow(t *testing.T) {
	store := newMemoryAttendance()
	svc := newAttendanceServiceForTest(store, &stubDirectory{names: map[string]string{"S1": "Ana"}}, &stubAudit{})

	statuses := []models.AttendanceStatus{models.AttendancePresent, models.AttendanceAbsent}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(status models.AttendanceStatus) {
			defer wg.Done()
			_, err := svc.Record(context.Background(), RecordAttendanceRequest{StudentID: "S1", CourseID: "C1", Date: "2024-01-01", Status: status})
			assert.NoError(t, err)
		}(statuses[i%2])
	}
	wg.Wait()

	rows, err := svc.List(context.Background(), models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, statuses, rows[0].Status)
}

func TestAttendanceServiceNameLookupFailureFallsBack(t *testing.T) {
	audit := &stubAudit{}
	svc := newAttendanceServiceForTest(newMemoryAttendance(), &stubDirectory{nameErr: errors.New("cache down")}, audit)

	record, err := svc.Record(context.Background(), RecordAttendanceRequest{StudentID: "S1", CourseID: "C1", Status: models.AttendanceLate})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), record.Date)

	entry := audit.last(t)
	assert.Equal(t, models.AuditActorSystem, entry.Actor)
	assert.Equal(t, models.SeverityInfo, entry.Severity)
}

func TestAttendanceServiceValidation(t *testing.T) {
	store := newMemoryAttendance()
	audit := &stubAudit{}
	svc := newAttendanceServiceForTest(store, &stubDirectory{}, audit)
	ctx := context.Background()

	_, err := svc.Record(ctx, RecordAttendanceRequest{StudentID: "S1", CourseID: "C1", Status: "Sleeping"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Record(ctx, RecordAttendanceRequest{StudentID: "S1", CourseID: "C1", Date: "01/02/2024", Status: models.AttendancePresent})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Record(ctx, RecordAttendanceRequest{CourseID: "C1", Status: models.AttendancePresent})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, audit.count())
}

func TestAttendanceServiceStoreFailureWritesNoAudit(t *testing.T) {
	store := newMemoryAttendance()
	store.err = errors.New("db down")
	audit := &stubAudit{}
	svc := newAttendanceServiceForTest(store, &stubDirectory{}, audit)

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{StudentID: "S1", CourseID: "C1", Status: models.AttendancePresent})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStoreUnavailable))
	assert.Zero(t, audit.count())
}

func TestAttendanceServiceScanResolvesCard(t *testing.T) {
	dir := &stubDirectory{names: map[string]string{"S1": "Ana"}, cards: map[string]string{"CARD-1": "S1"}}
	svc := newAttendanceServiceForTest(newMemoryAttendance(), dir, &stubAudit{})

	record, err := svc.Scan(context.Background(), ScanRequest{CardNumber: "CARD-1", CourseID: "C1", Status: models.AttendancePresent})
	require.NoError(t, err)
	assert.Equal(t, "S1", record.StudentID)

	_, err = svc.Scan(context.Background(), ScanRequest{CardNumber: "CARD-X", CourseID: "C1", Status: models.AttendancePresent})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAttendanceServiceListOrdering(t *testing.T) {
	svc := newAttendanceServiceForTest(newMemoryAttendance(), &stubDirectory{}, &stubAudit{})
	ctx := context.Background()
	for _, date := range []string{"2024-01-01", "2024-01-03", "2024-01-02"} {
		_, err := svc.Record(ctx, RecordAttendanceRequest{StudentID: "S1", CourseID: "C1", Date: date, Status: models.AttendancePresent})
		require.NoError(t, err)
	}
	rows, err := svc.List(ctx, models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01-03", rows[0].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-01-01", rows[2].Date.Format(models.DateLayout))
}

func TestAttendanceServiceSummary(t *testing.T) {
	store := newMemoryAttendance()
	svc := newAttendanceServiceForTest(store, &stubDirectory{}, &stubAudit{})
	ctx := context.Background()

	for _, req := range []RecordAttendanceRequest{
		{StudentID: "S1", CourseID: "C1", Date: "2024-01-01", Status: models.AttendancePresent},
		{StudentID: "S1", CourseID: "C1", Date: "2024-01-02", Status: models.AttendanceLate},
		{StudentID: "S2", CourseID: "C1", Date: "2024-01-01", Status: models.AttendanceAbsent},
		{StudentID: "S2", CourseID: "C2", Date: "2024-01-01", Status: models.AttendancePresent},
	} {
		_, err := svc.Record(ctx, req)
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, models.AttendanceSummaryFilter{CourseID: " C1 "})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalDays)
	assert.Equal(t, 1, summary.Absent)
	require.Len(t, summary.Students, 2)
	assert.InDelta(t, 100.0, summary.Students[0].Rate, 0.001)
	assert.InDelta(t, 0.0, summary.Students[1].Rate, 0.001)
}

func TestAttendanceServiceSummaryValidation(t *testing.T) {
	svc := newAttendanceServiceForTest(newMemoryAttendance(), &stubDirectory{}, &stubAudit{})
	ctx := context.Background()

	_, err := svc.Summary(ctx, models.AttendanceSummaryFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, err = svc.Summary(ctx, models.AttendanceSummaryFilter{CourseID: "C1", DateFrom: &from, DateTo: &to})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	store := newMemoryAttendance()
	store.err = errors.New("db down")
	svc = newAttendanceServiceForTest(store, &stubDirectory{}, &stubAudit{})
	_, err = svc.Summary(ctx, models.AttendanceSummaryFilter{CourseID: "C1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStoreUnavailable))
}
