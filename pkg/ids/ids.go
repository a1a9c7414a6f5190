package ids

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/noah-isme/smartpass-api/pkg/clock"
)

// Generator issues lexicographically sortable identifiers. Identifiers minted within the
// same millisecond stay ordered through the monotonic entropy sequence.
type Generator struct {
	clock   clock.Clock
	mu      sync.Mutex
	entropy io.Reader
}

// NewGenerator builds a generator reading time from clk.
func NewGenerator(clk clock.Clock) *Generator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Generator{clock: clk, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns a bare ULID string.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy).String()
}

// Prefixed returns prefix-ULID, e.g. LOG-01HV....
func (g *Generator) Prefixed(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return g.New()
	}
	return prefix + "-" + g.New()
}
