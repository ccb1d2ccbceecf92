package notify

import (
	"sync"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// DefaultRingSize is how many recent system events are kept for display.
const DefaultRingSize = 100

// Ring keeps the most recent system events, oldest dropped first.
type Ring struct {
	mu    sync.Mutex
	buf   []domain.SystemEvent
	start int
	n     int
}

// NewRing creates a ring holding up to size events.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]domain.SystemEvent, size)}
}

// Push appends ev, evicting the oldest entry when full.
func (r *Ring) Push(ev domain.SystemEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = ev
		r.n++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % len(r.buf)
}

// Snapshot returns the retained events, oldest first.
func (r *Ring) Snapshot() []domain.SystemEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.SystemEvent, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// Len returns the number of retained events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
