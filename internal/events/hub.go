package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one change pushed to connected clients.
type Event struct {
	Type         string    `json:"type"`
	DeliveryID   string    `json:"deliveryId,omitempty"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	ActorID      string    `json:"actorId,omitempty"`
	Count        int       `json:"count,omitempty"`
	At           time.Time `json:"at"`
}

// Broker fans events out to subscribers. Subscriptions end when ctx is cancelled,
// at which point the returned channel is closed.
type Broker interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}

const subscriberBuffer = 32

// Hub is an in-process Broker.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[chan Event]struct{}), logger: logger}
}

// Publish delivers e to every subscriber. Slow subscribers miss events rather
// than block the publisher.
func (h *Hub) Publish(_ context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Warn("dropping event for slow subscriber", zap.String("type", e.Type))
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, nil
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(ch)
	}()
	return ch, nil
}

func (h *Hub) remove(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
	return nil
}
