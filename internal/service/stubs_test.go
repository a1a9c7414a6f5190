package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/repository"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/ids"
)

var testNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestClock() *clock.Manual {
	return clock.NewManual(testNow)
}

func newTestIDs(clk clock.Clock) *ids.Generator {
	return ids.NewGenerator(clk)
}

type stubAudit struct {
	mu      sync.Mutex
	inputs  []AuditInput
	failErr error
}

func (s *stubAudit) Append(ctx context.Context, input AuditInput) (*models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, appErrors.Unavailable(s.failErr, "failed to append audit entry")
	}
	s.inputs = append(s.inputs, input)
	return &models.AuditEntry{ID: "LOG-test", Category: input.Category, Action: input.Action, Severity: input.Severity}, nil
}

func (s *stubAudit) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func (s *stubAudit) last(t *testing.T) AuditInput {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.inputs)
	return s.inputs[len(s.inputs)-1]
}

// stubTx serialises fn calls like a serializable transaction. snapshot captures
// in-memory store state at begin and returns the restore used as rollback.
type stubTx struct {
	mu       sync.Mutex
	snapshot func() func()
	err      error
	calls    int
}

func (s *stubTx) WithinTx(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	var restore func()
	if s.snapshot != nil {
		restore = s.snapshot()
	}
	if err := fn(nil); err != nil {
		if restore != nil {
			restore()
		}
		return err
	}
	return nil
}

type stubUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	cards map[string]string
	err   error
}

func newStubUsers(users ...*models.User) *stubUsers {
	s := &stubUsers{users: map[string]*models.User{}, cards: map[string]string{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.Email == models.NormalizeEmail(email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (s *stubUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *stubUsers) Create(ctx context.Context, q sqlx.ExtContext, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *stubUsers) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *stubUsers) Delete(ctx context.Context, q sqlx.ExtContext, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.users, id)
	for card, owner := range s.cards {
		if owner == id {
			delete(s.cards, card)
		}
	}
	return nil
}

func (s *stubUsers) ResolveCard(ctx context.Context, cardNumber string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.cards[cardNumber]
	if !ok {
		return "", sql.ErrNoRows
	}
	return owner, nil
}

func (s *stubUsers) BindCard(ctx context.Context, q sqlx.ExtContext, cardNumber, studentID string, boundAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.cards[cardNumber]; ok && owner != studentID {
		return repository.ErrCardBound
	}
	s.cards[cardNumber] = studentID
	return nil
}

func (s *stubUsers) UnbindCard(ctx context.Context, cardNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[cardNumber]; !ok {
		return sql.ErrNoRows
	}
	delete(s.cards, cardNumber)
	return nil
}

func (s *stubUsers) ListCards(ctx context.Context, filter models.CardFilter) ([]models.RFIDBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.RFIDBinding
	for card, owner := range s.cards {
		if filter.StudentID != "" && owner != filter.StudentID {
			continue
		}
		binding := models.RFIDBinding{CardNumber: card, StudentID: owner}
		if u, ok := s.users[owner]; ok {
			binding.StudentName = u.Name
		}
		out = append(out, binding)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardNumber < out[j].CardNumber })
	return out, nil
}

func (s *stubUsers) snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make(map[string]*models.User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	cards := make(map[string]string, len(s.cards))
	for k, v := range s.cards {
		cards[k] = v
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.users = users
		s.cards = cards
	}
}

func studentUser(id, name string) *models.User {
	return &models.User{ID: id, Name: name, Email: id + "@campus.edu", Role: models.RoleStudent, AccountStatus: models.AccountActive}
}

func counselorUser(id, name string) *models.User {
	return &models.User{ID: id, Name: name, Email: id + "@campus.edu", Role: models.RoleCounselor, AccountStatus: models.AccountActive}
}
