// Package ids provides the identifier sources injected into the tree store.
package ids

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrUnknownStrategy is returned by New for an unrecognized strategy name.
var ErrUnknownStrategy = errors.New("unknown id strategy")

// Generator produces process-wide unique node identifiers.
// Implementations must be safe for concurrent use and never repeat a value.
type Generator interface {
	Next() string
}

// Strategy names accepted by New.
const (
	StrategySequence = "sequence"
	StrategyULID     = "ulid"
	StrategyUUID     = "uuid"
)

// DefaultPrefix and DefaultStart reproduce the "node-101", "node-102", ...
// ids of the demo data set.
const (
	DefaultPrefix = "node-"
	DefaultStart  = 100
)

// Sequence hands out prefix+counter ids. The first id is start+1.
type Sequence struct {
	prefix string
	n      atomic.Uint64
}

// NewSequence creates a counter-based generator.
func NewSequence(prefix string, start uint64) *Sequence {
	s := &Sequence{prefix: prefix}
	s.n.Store(start)
	return s
}

// Next returns the next id in the sequence.
func (s *Sequence) Next() string {
	return s.prefix + strconv.FormatUint(s.n.Add(1), 10)
}

// ULID generates lexically sortable ids. Ids created within the same
// millisecond stay ordered thanks to monotonic entropy.
type ULID struct {
	prefix  string
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULID creates a ULID generator.
func NewULID(prefix string) *ULID {
	return &ULID{
		prefix:  prefix,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Next returns a fresh ULID string.
func (g *ULID) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prefix + ulid.MustNew(ulid.Now(), g.entropy).String()
}

// UUID generates random (v4) ids.
type UUID struct {
	prefix string
}

// NewUUID creates a UUID generator.
func NewUUID(prefix string) *UUID {
	return &UUID{prefix: prefix}
}

// Next returns a fresh UUID string.
func (g *UUID) Next() string {
	return g.prefix + uuid.NewString()
}

// New builds a generator by strategy name. An empty strategy selects the
// sequence generator.
func New(strategy, prefix string, start uint64) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategySequence:
		return NewSequence(prefix, start), nil
	case StrategyULID:
		return NewULID(prefix), nil
	case StrategyUUID:
		return NewUUID(prefix), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// Func adapts a plain function to Generator. Handy for tests that want a
// fixed id stream.
type Func func() string

// Next calls f.
func (f Func) Next() string { return f() }
