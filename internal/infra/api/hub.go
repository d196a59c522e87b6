package api

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gator-course-advisor/internal/usecase"
)

var _ usecase.EventSink = (*Hub)(nil)

// StreamEvent is sent to SSE clients. Every event carries the full view, so a
// client that reconnects only needs the latest one.
type StreamEvent struct {
	Seq       uint64       `json:"seq"`
	Type      string       `json:"type"`
	View      usecase.View `json:"view"`
	Timestamp time.Time    `json:"timestamp"`
}

// Hub fans advisor views out to stream subscribers. Slow subscribers miss
// events instead of blocking the advisor.
type Hub struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[chan StreamEvent]struct{}
	buffer int
	log    *zerolog.Logger
}

func NewHub(buffer int, logger *zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "hub").Logger()
	return &Hub{subs: make(map[chan StreamEvent]struct{}), buffer: buffer, log: &l}
}

// OnView implements usecase.EventSink.
func (h *Hub) OnView(view usecase.View) {
	h.mu.Lock()
	h.seq++
	event := StreamEvent{Seq: h.seq, Type: "view", View: view, Timestamp: time.Now()}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()
	if dropped > 0 {
		h.log.Warn().Uint64("seq", event.Seq).Int("dropped", dropped).Msg("hub event dropped")
	}
}

// Subscribe registers a subscriber and returns its channel and an
// unsubscribe func.
func (h *Hub) Subscribe() (<-chan StreamEvent, func()) {
	h.mu.Lock()
	ch := make(chan StreamEvent, h.buffer)
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.log.Debug().Int("subs", n).Msg("hub subscribe")

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			h.log.Debug().Int("subs", remaining).Msg("hub unsubscribe")
		})
	}
	return ch, unsub
}

// Seq is the sequence number of the last published event.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
