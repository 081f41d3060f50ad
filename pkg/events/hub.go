// Package events implements the in-process typed pub/sub hub. Subscribers
// register on an origin; publication dispatches synchronously on the caller's
// goroutine in FIFO registration order. Repositories never publish directly:
// they queue events on their unit of work, which publishes after commit.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/jacquetc/qleany/pkg/domain"
)

// Subsystem discriminates the event source.
type Subsystem int

const (
	// SubsystemEntities marks repository-level entity changes.
	SubsystemEntities Subsystem = iota
	// SubsystemManifest marks manifest handling (load, new, close).
	SubsystemManifest
	// SubsystemLongOperation marks long-operation state transitions.
	SubsystemLongOperation
)

// Tag is the event kind inside a subsystem.
type Tag int

const (
	Created Tag = iota
	Updated
	Removed

	ManifestLoad
	ManifestNew
	ManifestClose

	OperationStarted
	OperationProgress
	OperationCompleted
	OperationCancelled
	OperationFailed
)

// String returns the display name of the tag.
func (t Tag) String() string {
	switch t {
	case Created:
		return "Created"
	case Updated:
		return "Updated"
	case Removed:
		return "Removed"
	case ManifestLoad:
		return "ManifestLoad"
	case ManifestNew:
		return "ManifestNew"
	case ManifestClose:
		return "ManifestClose"
	case OperationStarted:
		return "OperationStarted"
	case OperationProgress:
		return "OperationProgress"
	case OperationCompleted:
		return "OperationCompleted"
	case OperationCancelled:
		return "OperationCancelled"
	case OperationFailed:
		return "OperationFailed"
	default:
		return "Unknown"
	}
}

// Origin identifies who emitted an event and why. Kind is empty for
// non-entity subsystems.
type Origin struct {
	Subsystem Subsystem
	Kind      domain.Kind
	Tag       Tag
}

// Event is the envelope delivered to subscribers.
type Event struct {
	Origin Origin
	IDs    []domain.EntityID
	Data   string
}

// Handler processes one event. Handlers run synchronously on the publisher's
// goroutine and must not block for long.
type Handler func(Event)

// UnsubscribeFunc cancels a subscription.
type UnsubscribeFunc func()

// subscription pairs a handler with its registration id.
type subscription struct {
	id      uint64
	handler Handler
}

// Hub routes events to subscribers by origin.
type Hub struct {
	mu     sync.RWMutex
	subs   map[Origin][]subscription
	nextID atomic.Uint64

	published atomic.Int64
	delivered atomic.Int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Origin][]subscription)}
}

// Subscribe registers a handler for an origin. The returned function removes
// the subscription; calling it twice is harmless.
func (h *Hub) Subscribe(origin Origin, handler Handler) UnsubscribeFunc {
	id := h.nextID.Add(1)

	h.mu.Lock()
	h.subs[origin] = append(h.subs[origin], subscription{id: id, handler: handler})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.subs[origin]
		for i, sub := range list {
			if sub.id == id {
				h.subs[origin] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

// Publish dispatches an event to every subscriber of its origin, in
// registration order, synchronously.
func (h *Hub) Publish(event Event) {
	h.published.Add(1)

	h.mu.RLock()
	list := make([]subscription, len(h.subs[event.Origin]))
	copy(list, h.subs[event.Origin])
	h.mu.RUnlock()

	for _, sub := range list {
		sub.handler(event)
		h.delivered.Add(1)
	}
}

// Stats reports hub counters.
type Stats struct {
	Subscriptions int   `json:"subscriptions"`
	Published     int64 `json:"published"`
	Delivered     int64 `json:"delivered"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	h.mu.RLock()
	count := 0
	for _, list := range h.subs {
		count += len(list)
	}
	h.mu.RUnlock()

	return Stats{
		Subscriptions: count,
		Published:     h.published.Load(),
		Delivered:     h.delivered.Load(),
	}
}
