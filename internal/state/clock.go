package state

import (
	"sync"
	"sync/atomic"
)

// Sequencer hands out the broadcast sequence numbers of one server process.
type Sequencer struct {
	last atomic.Uint64
}

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Last returns the most recently issued number, or 0.
func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}

// SeqTracker follows the sequence numbers a client receives and reports gaps.
// The first number seen after construction or Reset becomes the baseline.
type SeqTracker struct {
	mu     sync.Mutex
	last   uint64
	primed bool
}

// Observe records seq and returns false when one or more broadcasts were
// skipped. Zero means the sender does not number its messages and is
// always accepted. Stale or repeated numbers are accepted without moving
// the baseline backwards.
func (t *SeqTracker) Observe(seq uint64) bool {
	if seq == 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.primed {
		t.last = seq
		t.primed = true
		return true
	}
	if seq <= t.last {
		return true
	}
	ok := seq == t.last+1
	t.last = seq
	return ok
}

// Reset forgets the baseline, typically after a reconnect.
func (t *SeqTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = 0
	t.primed = false
}
