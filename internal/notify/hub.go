// Package notify fans core notifications out to in-process subscribers.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// Kind names a notification stream.
type Kind string

const (
	KindActivity Kind = "activity-update"
	KindEvent    Kind = "system-event"
	KindFailure  Kind = "monitor-failure"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Notification is one published item. Exactly one payload field is set.
type Notification struct {
	Kind     Kind                   `json:"kind"`
	ID       string                 `json:"id"`
	At       time.Time              `json:"at"`
	Activity *domain.Activity       `json:"activity,omitempty"`
	Event    *domain.SystemEvent    `json:"event,omitempty"`
	Failure  *domain.MonitorFailure `json:"failure,omitempty"`
}

// Payload returns whichever payload field is set.
func (n Notification) Payload() any {
	switch {
	case n.Activity != nil:
		return n.Activity
	case n.Event != nil:
		return n.Event
	default:
		return n.Failure
	}
}

// Hub implements domain.Publisher. Delivery never blocks the publisher:
// a subscriber whose queue is full misses the notification.
type Hub struct {
	buffer int
	recent *Ring
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[uint64]chan Notification
	nextID uint64
	closed bool

	dropped atomic.Int64
}

// NewHub creates a hub. buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		buffer: buffer,
		recent: NewRing(DefaultRingSize),
		logger: logger,
		subs:   make(map[uint64]chan Notification),
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel; calling it twice is safe.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Notification, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// PublishActivity implements domain.Publisher.
func (h *Hub) PublishActivity(activity domain.Activity) {
	h.broadcast(Notification{
		Kind:     KindActivity,
		ID:       ulid.Make().String(),
		At:       time.Now(),
		Activity: &activity,
	})
}

// PublishSystemEvent implements domain.Publisher.
func (h *Hub) PublishSystemEvent(event domain.SystemEvent) {
	h.recent.Push(event)
	id := event.ID
	if id == "" {
		id = ulid.Make().String()
	}
	h.broadcast(Notification{
		Kind:  KindEvent,
		ID:    id,
		At:    time.Now(),
		Event: &event,
	})
}

// PublishFailure implements domain.Publisher.
func (h *Hub) PublishFailure(failure domain.MonitorFailure) {
	h.broadcast(Notification{
		Kind:    KindFailure,
		ID:      ulid.Make().String(),
		At:      time.Now(),
		Failure: &failure,
	})
}

// Alive reports false once the hub has been closed.
func (h *Hub) Alive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.closed
}

// Close closes every subscriber channel. Later publishes are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Recent returns the last system events, oldest first.
func (h *Hub) Recent() []domain.SystemEvent {
	return h.recent.Snapshot()
}

// Dropped counts notifications lost to full subscriber queues.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Subscribers returns the number of registered listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) broadcast(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.dropped.Add(1)
			h.logger.Debug("subscriber queue full, dropping notification",
				zap.Uint64("subscriber", id),
				zap.String("kind", string(n.Kind)))
		}
	}
}

// Ensure Hub implements domain.Publisher.
var _ domain.Publisher = (*Hub)(nil)
