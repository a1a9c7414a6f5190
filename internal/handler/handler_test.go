package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/middleware"
	"github.com/noah-isme/smartpass-api/internal/models"
	"github.com/noah-isme/smartpass-api/internal/service"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
)

type testEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newTestContext(method, target string, body interface{}, actor *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if actor != nil {
		c.Set(middleware.ContextUserKey, actor)
	}
	return c, rec
}

type fakeTicketSrv struct {
	ticket     *models.Ticket
	err        error
	lastFilter models.TicketFilter
	lastActor  models.Actor
}

func (f *fakeTicketSrv) Create(_ context.Context, req service.CreateTicketRequest, actor models.Actor) (*models.Ticket, error) {
	f.lastActor = actor
	return f.ticket, f.err
}

func (f *fakeTicketSrv) UpdateStatus(_ context.Context, id string, status models.TicketStatus, actor models.Actor) (*models.Ticket, error) {
	f.lastActor = actor
	return f.ticket, f.err
}

func (f *fakeTicketSrv) Get(context.Context, string) (*models.Ticket, error) {
	return f.ticket, f.err
}

func (f *fakeTicketSrv) List(_ context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	f.lastFilter = filter
	return []models.Ticket{}, f.err
}

func TestTicketHandlerDegradedKeepsEntity(t *testing.T) {
	srv := &fakeTicketSrv{
		ticket: &models.Ticket{ID: "TK-1", Status: models.TicketResolved},
		err:    appErrors.Degraded(errors.New("audit down"), "ticket update"),
	}
	h := NewTicketHandler(srv)
	c, rec := newTestContext(http.MethodPatch, "/tickets/TK-1/status", ticketStatusPayload{Status: models.TicketResolved}, &models.JWTClaims{UserID: "SA1", Role: models.RoleSysAdmin, Name: "Sam"})
	c.Params = gin.Params{{Key: "id", Value: "TK-1"}}

	h.UpdateStatus(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrAuditDegraded.Code, env.Error.Code)
	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	assert.Equal(t, "TK-1", ticket.ID)
	assert.Equal(t, "Sam", srv.lastActor.Name)
}

func TestTicketHandlerInvalidTransitionHasNoData(t *testing.T) {
	srv := &fakeTicketSrv{err: appErrors.Clone(appErrors.ErrInvalidTransition, "ticket cannot move")}
	h := NewTicketHandler(srv)
	c, rec := newTestContext(http.MethodPatch, "/tickets/TK-1/status", ticketStatusPayload{Status: models.TicketOpen}, &models.JWTClaims{UserID: "SA1", Role: models.RoleSysAdmin})

	h.UpdateStatus(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Empty(t, env.Data)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, env.Error.Code)
}

func TestTicketHandlerListScopesNonAdmins(t *testing.T) {
	srv := &fakeTicketSrv{}
	h := NewTicketHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/tickets?requestorId=S9&status=Open", nil, &models.JWTClaims{UserID: "S1", Role: models.RoleStudent})
	h.List(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "S1", srv.lastFilter.RequestorID)
	assert.Equal(t, models.TicketOpen, srv.lastFilter.Status)

	c, _ = newTestContext(http.MethodGet, "/tickets?requestorId=S9", nil, &models.JWTClaims{UserID: "SU1", Role: models.RoleSuperAdmin})
	h.List(c)
	assert.Equal(t, "S9", srv.lastFilter.RequestorID)
}

func TestTicketHandlerRequiresIdentity(t *testing.T) {
	h := NewTicketHandler(&fakeTicketSrv{})
	c, rec := newTestContext(http.MethodPost, "/tickets", service.CreateTicketRequest{Subject: "x"}, nil)

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type fakeAttendanceSrv struct {
	lastFilter  models.AttendanceFilter
	lastScan    service.ScanRequest
	lastSummary models.AttendanceSummaryFilter
}

func (f *fakeAttendanceSrv) Record(_ context.Context, req service.RecordAttendanceRequest) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{StudentID: req.StudentID, CourseID: req.CourseID, Status: req.Status}, nil
}

func (f *fakeAttendanceSrv) Scan(_ context.Context, req service.ScanRequest) (*models.AttendanceRecord, error) {
	f.lastScan = req
	return &models.AttendanceRecord{StudentID: "S1", CourseID: req.CourseID, Status: req.Status}, nil
}

func (f *fakeAttendanceSrv) List(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	f.lastFilter = filter
	return []models.AttendanceRecord{}, nil
}

func (f *fakeAttendanceSrv) Export(_ context.Context, filter models.AttendanceFilter, format string) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "attendance." + format, ContentType: "text/csv", Body: []byte("a,b\n")}, nil
}

func (f *fakeAttendanceSrv) Summary(_ context.Context, filter models.AttendanceSummaryFilter) (*models.AttendanceSummary, error) {
	f.lastSummary = filter
	return &models.AttendanceSummary{CourseID: filter.CourseID, Students: []models.StudentAttendanceSummary{}}, nil
}

func TestAttendanceHandlerSummaryParsesRange(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	h := NewAttendanceHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/attendance/summary?courseId=CS101&to=2024/01/31", nil, nil)
	h.Summary(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/attendance/summary?courseId=CS101&from=2024-01-01&to=2024-01-31", nil, nil)
	h.Summary(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CS101", srv.lastSummary.CourseID)
	require.NotNil(t, srv.lastSummary.DateFrom)
	require.NotNil(t, srv.lastSummary.DateTo)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *srv.lastSummary.DateTo)
}

func TestAttendanceHandlerListParsesDate(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	h := NewAttendanceHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/attendance?date=01-02-2024", nil, nil)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/attendance?date=2024-01-02&courseId=CS101", nil, nil)
	h.List(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastFilter.Date)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *srv.lastFilter.Date)
	assert.Equal(t, "CS101", srv.lastFilter.CourseID)
}

func TestAttendanceHandlerExportStreamsFile(t *testing.T) {
	h := NewAttendanceHandler(&fakeAttendanceSrv{})
	c, rec := newTestContext(http.MethodGet, "/attendance/export", nil, nil)

	h.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="attendance.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", rec.Body.String())
}

type fakeRegistrationSrv struct {
	err error
}

func (f *fakeRegistrationSrv) Submit(_ context.Context, req service.SignupRequest) (*models.PendingRegistration, error) {
	return &models.PendingRegistration{ID: "PU-1", Email: req.Email, Status: models.DecisionPending}, f.err
}

func (f *fakeRegistrationSrv) ListPending(context.Context) ([]models.PendingRegistration, error) {
	return []models.PendingRegistration{}, nil
}

func (f *fakeRegistrationSrv) Approve(_ context.Context, id string, actor models.Actor) (*models.PendingRegistration, *models.User, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.PendingRegistration{ID: id, Status: models.DecisionApproved}, &models.User{ID: "S-1"}, nil
}

func (f *fakeRegistrationSrv) Reject(_ context.Context, id string, actor models.Actor) (*models.PendingRegistration, error) {
	return &models.PendingRegistration{ID: id, Status: models.DecisionRejected}, f.err
}

func TestRegistrationHandlerApprove(t *testing.T) {
	h := NewRegistrationHandler(&fakeRegistrationSrv{})
	c, rec := newTestContext(http.MethodPost, "/registrations/PU-1/approve", nil, &models.JWTClaims{UserID: "admin1", Role: models.RoleSuperAdmin})
	c.Params = gin.Params{{Key: "id", Value: "PU-1"}}

	h.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var result approvalResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, models.DecisionApproved, result.Registration.Status)
	assert.Equal(t, "S-1", result.User.ID)
}

func TestRegistrationHandlerApproveAlreadyDecided(t *testing.T) {
	h := NewRegistrationHandler(&fakeRegistrationSrv{err: appErrors.Clone(appErrors.ErrAlreadyDecided, "registration already decided")})
	c, rec := newTestContext(http.MethodPost, "/registrations/PU-1/approve", nil, &models.JWTClaims{UserID: "admin1", Role: models.RoleSuperAdmin})

	h.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, appErrors.ErrAlreadyDecided.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestRegistrationHandlerSignupRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRegistrationHandler(&fakeRegistrationSrv{})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString("{"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Signup(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeEventSrv struct {
	lastFilter models.EventFilter
}

func (f *fakeEventSrv) Request(_ context.Context, req service.EventRequest, actor models.Actor) (*models.Event, error) {
	return &models.Event{ID: "EV-1", StudentID: actor.ID, CounselorID: req.CounselorID, Status: models.EventPending}, nil
}

func (f *fakeEventSrv) Respond(_ context.Context, id string, req service.EventResponse, actor models.Actor) (*models.Event, error) {
	return &models.Event{ID: id, Status: req.Status}, nil
}

func (f *fakeEventSrv) Get(_ context.Context, id string) (*models.Event, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
}

func (f *fakeEventSrv) List(_ context.Context, filter models.EventFilter) ([]models.Event, error) {
	f.lastFilter = filter
	return []models.Event{}, nil
}

func TestEventHandlerListScopesByRole(t *testing.T) {
	srv := &fakeEventSrv{}
	h := NewEventHandler(srv)

	c, _ := newTestContext(http.MethodGet, "/events?studentId=S9", nil, &models.JWTClaims{UserID: "S1", Role: models.RoleStudent})
	h.List(c)
	assert.Equal(t, "S1", srv.lastFilter.StudentID)

	c, _ = newTestContext(http.MethodGet, "/events?status=Pending", nil, &models.JWTClaims{UserID: "C1", Role: models.RoleCounselor})
	h.List(c)
	assert.Equal(t, "C1", srv.lastFilter.CounselorID)
	assert.Equal(t, models.EventPending, srv.lastFilter.Status)
}

func TestEventHandlerGetNotFound(t *testing.T) {
	h := NewEventHandler(&fakeEventSrv{})
	c, rec := newTestContext(http.MethodGet, "/events/EV-x", nil, nil)

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeReadiness struct{}

func (fakeReadiness) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(fakeReadiness{}, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	c, rec := newTestContext(http.MethodGet, "/ready", nil, nil)

	h.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])

	c, rec = newTestContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, "# metrics", rec.Body.String())
}

type fakeIdentitySrv struct {
	cards      []models.RFIDBinding
	err        error
	lastFilter models.CardFilter
}

func (f *fakeIdentitySrv) FindByID(context.Context, string) (*models.User, error) {
	return nil, appErrors.ErrNotFound
}

func (f *fakeIdentitySrv) ListUsers(context.Context, models.UserFilter) ([]models.User, error) {
	return []models.User{}, f.err
}

func (f *fakeIdentitySrv) ResolveCard(context.Context, string) (string, error) {
	return "", f.err
}

func (f *fakeIdentitySrv) ListCards(_ context.Context, filter models.CardFilter) ([]models.RFIDBinding, error) {
	f.lastFilter = filter
	return f.cards, f.err
}

func (f *fakeIdentitySrv) BindCard(context.Context, string, string, models.Actor) error {
	return f.err
}

func (f *fakeIdentitySrv) UnbindCard(context.Context, string, models.Actor) error {
	return f.err
}

func (f *fakeIdentitySrv) CreateUser(context.Context, service.CreateUserRequest, models.Actor) (*models.User, error) {
	return nil, f.err
}

func (f *fakeIdentitySrv) UpdateUser(context.Context, string, service.UpdateUserRequest, models.Actor) (*models.User, error) {
	return nil, f.err
}

func (f *fakeIdentitySrv) DeleteUser(context.Context, string, models.Actor) error {
	return f.err
}

func TestUserHandlerListCardsReportsCount(t *testing.T) {
	srv := &fakeIdentitySrv{cards: []models.RFIDBinding{
		{CardNumber: "C-1", StudentID: "S1", StudentName: "Ana"},
		{CardNumber: "C-2", StudentID: "S1", StudentName: "Ana"},
	}}
	h := NewUserHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/rfid/cards?studentId=S1", nil, &models.JWTClaims{UserID: "SU1", Role: models.RoleSuperAdmin})

	h.ListCards(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "S1", srv.lastFilter.StudentID)
	env := decodeEnvelope(t, rec)
	assert.EqualValues(t, 2, env.Meta["count"])
	var cards []models.RFIDBinding
	require.NoError(t, json.Unmarshal(env.Data, &cards))
	assert.Equal(t, "Ana", cards[0].StudentName)
}

func TestUserHandlerListCardsStoreDown(t *testing.T) {
	h := NewUserHandler(&fakeIdentitySrv{err: appErrors.Unavailable(errors.New("conn reset"), "failed to list cards")})
	c, rec := newTestContext(http.MethodGet, "/rfid/cards", nil, &models.JWTClaims{UserID: "SU1", Role: models.RoleSuperAdmin})

	h.ListCards(c)

	assert.Equal(t, appErrors.ErrStoreUnavailable.Status, rec.Code)
}
