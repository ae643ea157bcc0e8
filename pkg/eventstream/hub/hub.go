// Package hub provides an in-process eventstream publisher that broadcasts
// sync events to local subscribers, such as clients of the API's event
// stream.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
)

// DefaultBuffer is the per-subscriber queue length used when Subscribe is
// given a non-positive size.
const DefaultBuffer = 16

type subscription struct {
	ch chan *eventstream.IndexSyncedEvent
}

// Hub fans events out to subscribers. Publishing never blocks: a subscriber
// whose queue is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
	logger *slog.Logger
}

// New creates an empty Hub.
func New(log *slog.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		subs:   make(map[*subscription]struct{}),
		logger: log,
	}
}

// Subscribe registers a subscriber with a queue of buffer events. The
// returned cancel func unregisters it and closes the channel; it is safe to
// call more than once. Subscribing to a closed Hub yields a closed channel.
func (h *Hub) Subscribe(buffer int) (<-chan *eventstream.IndexSyncedEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &subscription{ch: make(chan *eventstream.IndexSyncedEvent, buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}

	return sub.ch, func() { h.remove(sub) }
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// PublishSync delivers event to every subscriber with room in its queue.
func (h *Hub) PublishSync(_ context.Context, event *eventstream.IndexSyncedEvent) error {
	if event == nil {
		return eventstream.ErrNilSyncEvent
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("event dropped for slow subscribers",
			"event_id", event.EventID,
			"dropped", dropped,
		)
	}
	return nil
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
	return nil
}
