// Package ids provides identifier sources for sessions and messages.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"gator-course-advisor/internal/domain/ports/adapter"
)

var (
	_ adapter.IDGenerator = (*Generator)(nil)
	_ adapter.IDGenerator = (*Sequence)(nil)
)

// Generator issues UUID session ids and monotonic ULID message ids. ULIDs
// sort by creation time, so message ids read in the order they were issued.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (g *Generator) NewSessionID() string { return uuid.NewString() }

func (g *Generator) NewMessageID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		// monotonic entropy overflowed within one millisecond; fall back to a fresh reader
		id = ulid.MustNew(ulid.Timestamp(g.now()), rand.Reader)
	}
	return id.String()
}

// Sequence is a deterministic generator: "s-1", "s-2"... and "m-1", "m-2"...
type Sequence struct {
	sessions atomic.Int64
	messages atomic.Int64
}

func NewSequence() *Sequence { return &Sequence{} }

func (s *Sequence) NewSessionID() string {
	return fmt.Sprintf("s-%d", s.sessions.Add(1))
}

func (s *Sequence) NewMessageID() string {
	return fmt.Sprintf("m-%d", s.messages.Add(1))
}
