package hub

import (
	"log/slog"
	"sync"

	"PixelBoard/internal/state"
	"PixelBoard/internal/wire"
)

// Subscriber is an observer of the broadcast stream, usually a Session.
type Subscriber interface {
	ID() string
	// Deliver queues one encoded frame. It must not block; an error means
	// the subscriber can no longer keep up and will be evicted.
	Deliver(frame []byte) error
	Close()
}

// Hub is the registry of live sessions and the single broadcast queue of
// this process. Register, Unregister and Publish are serialized, so every
// subscriber observes broadcasts in the same order they were published.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]Subscriber
	seq    state.Sequencer
	logger *slog.Logger
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]Subscriber),
		logger: logger,
	}
}

// Register adds s and announces the new session count to everyone,
// including s. It returns the count after registration.
func (h *Hub) Register(s Subscriber) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs[s.ID()] = s
	h.logger.Info("session connected", "session", s.ID(), "sessions", len(h.subs))
	h.fanoutLocked(wire.UserCount(len(h.subs)))
	return len(h.subs)
}

// Unregister removes s. Removing a subscriber that is already gone is a
// no-op and broadcasts nothing; otherwise the remaining sessions receive
// exactly one user_count.
func (h *Hub) Unregister(s Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.subs[s.ID()]; !ok || cur != s {
		return false
	}
	delete(h.subs, s.ID())
	h.logger.Info("session disconnected", "session", s.ID(), "sessions", len(h.subs))
	h.fanoutLocked(wire.UserCount(len(h.subs)))
	return true
}

// Publish stamps m with the next sequence number and delivers it to every
// registered subscriber.
func (h *Hub) Publish(m wire.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanoutLocked(m)
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// LastSeq returns the sequence number of the most recent broadcast.
func (h *Hub) LastSeq() uint64 {
	return h.seq.Last()
}

// Close evicts every subscriber without further broadcasts.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]Subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

// fanoutLocked broadcasts m, then evicts every subscriber whose delivery
// failed. Each eviction is followed by its own user_count broadcast, which
// may in turn evict more subscribers.
func (h *Hub) fanoutLocked(m wire.Message) {
	pending := h.broadcastLocked(m)
	for len(pending) > 0 {
		s := pending[0]
		pending = pending[1:]

		if cur, ok := h.subs[s.ID()]; !ok || cur != s {
			continue
		}
		delete(h.subs, s.ID())
		s.Close()
		h.logger.Warn("session evicted", "session", s.ID(), "sessions", len(h.subs))

		pending = append(pending, h.broadcastLocked(wire.UserCount(len(h.subs)))...)
	}
}

func (h *Hub) broadcastLocked(m wire.Message) []Subscriber {
	m.Seq = h.seq.Next()
	frame, err := wire.Encode(m)
	if err != nil {
		h.logger.Error("encode broadcast", "type", m.Type, "error", err)
		return nil
	}

	var failed []Subscriber
	for _, s := range h.subs {
		if err := s.Deliver(frame); err != nil {
			h.logger.Debug("deliver failed", "session", s.ID(), "type", m.Type, "error", err)
			failed = append(failed, s)
		}
	}
	return failed
}
