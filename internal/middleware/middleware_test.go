package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smartpass-api/internal/models"
	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
)

type fakeValidator struct {
	claims *models.JWTClaims
}

func (f fakeValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return f.claims, nil
}

func newProtectedRouter(role models.UserRole, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	validator := fakeValidator{claims: &models.JWTClaims{UserID: "S1", Role: role, Name: "Ana"}}
	router.GET("/users/:id", JWT(validator), RBAC(allowed...), func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, actor.Label())
	})
	return router
}

func doGet(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	router := newProtectedRouter(models.RoleSuperAdmin, string(models.RoleSuperAdmin))

	assert.Equal(t, http.StatusUnauthorized, doGet(router, "/users/S9", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(router, "/users/S9", "bad").Code)

	rec := doGet(router, "/users/S9", "good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana", rec.Body.String())
}

func TestRBACRolesAndSelf(t *testing.T) {
	router := newProtectedRouter(models.RoleStudent, string(models.RoleSysAdmin), SelfParam)

	assert.Equal(t, http.StatusOK, doGet(router, "/users/S1", "good").Code)
	assert.Equal(t, http.StatusForbidden, doGet(router, "/users/S2", "good").Code)
}

type countingRecorder struct {
	mu sync.Mutex
	n  int
}

func (r *countingRecorder) RecordScanThrottled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
}

func TestScanThrottlePerReader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &countingRecorder{}
	throttle := NewScanThrottle(1, 2, recorder)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	throttle.now = func() time.Time { return now }

	router := gin.New()
	router.POST("/scan", throttle.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	scan := func(reader string) int {
		req := httptest.NewRequest(http.MethodPost, "/scan", nil)
		req.Header.Set(ReaderHeader, reader)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, scan("R1"))
	assert.Equal(t, http.StatusNoContent, scan("R1"))
	assert.Equal(t, http.StatusTooManyRequests, scan("R1"))
	assert.Equal(t, http.StatusNoContent, scan("R2"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, scan("R1"))
	assert.Equal(t, 1, recorder.n)
}

func TestScanThrottleDisabled(t *testing.T) {
	throttle := NewScanThrottle(0, 1, nil)
	for i := 0; i < 50; i++ {
		require.True(t, throttle.allow("R1"))
	}
}

type recordingObserver struct {
	path   string
	status int
}

func (o *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.path = path
	o.status = status
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/tickets/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	doGet(router, "/tickets/TK-1", "")
	assert.Equal(t, "/tickets/:id", observer.path)
	assert.Equal(t, http.StatusOK, observer.status)

	doGet(router, "/nope", "")
	assert.Equal(t, "unmatched", observer.path)
}
