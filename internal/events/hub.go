// Package events provides the in-process broadcast hub for pipeline
// events consumed by websocket subscribers.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/roworks/meshusd/types"
)

// subscriberBuffer bounds each subscriber's pending events. A subscriber
// that falls this far behind starts losing events rather than blocking
// the pipeline.
const subscriberBuffer = 16

// Hub fans pipeline events out to subscribers. Publish never blocks.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan types.AssetEvent
	nextID int
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[int]chan types.AssetEvent),
		logger: logger.With(zap.String("component", "event_hub")),
	}
}

// Subscribe registers a new subscriber and returns its event channel and
// an unsubscribe function. The channel is closed on unsubscribe.
func (h *Hub) Subscribe() (<-chan types.AssetEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan types.AssetEvent, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (h *Hub) Publish(event types.AssetEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.logger.Debug("slow event subscriber, dropping event",
				zap.Int("subscriber", id),
				zap.String("asset", event.AssetName),
			)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
