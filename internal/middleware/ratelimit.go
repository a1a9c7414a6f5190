package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/smartpass-api/pkg/errors"
	"github.com/noah-isme/smartpass-api/pkg/response"
)

// ReaderHeader identifies the RFID reader submitting a scan.
const ReaderHeader = "X-Reader-ID"

const (
	readerIdleTTL     = 5 * time.Minute
	readerSweepPeriod = time.Minute
)

type throttleRecorder interface {
	RecordScanThrottled()
}

type readerBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ScanThrottle is a token bucket per reader. Readers without the header share a
// bucket per client IP.
type ScanThrottle struct {
	mu        sync.Mutex
	buckets   map[string]*readerBucket
	limit     rate.Limit
	burst     int
	recorder  throttleRecorder
	now       func() time.Time
	lastSweep time.Time
}

// NewScanThrottle builds a throttle admitting perSecond scans with the given burst.
// A non-positive rate disables throttling.
func NewScanThrottle(perSecond float64, burst int, recorder throttleRecorder) *ScanThrottle {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &ScanThrottle{
		buckets:  make(map[string]*readerBucket),
		limit:    limit,
		burst:    burst,
		recorder: recorder,
		now:      time.Now,
	}
}

// Handler rejects scans over the reader's budget with 429.
func (t *ScanThrottle) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(ReaderHeader))
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !t.allow(key) {
			if t.recorder != nil {
				t.recorder.RecordScanThrottled()
			}
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, "scan rate exceeded for reader"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (t *ScanThrottle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > readerSweepPeriod {
		for k, b := range t.buckets {
			if now.Sub(b.lastSeen) > readerIdleTTL {
				delete(t.buckets, k)
			}
		}
		t.lastSweep = now
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &readerBucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}
