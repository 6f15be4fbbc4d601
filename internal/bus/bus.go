package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber channel buffer.
const DefaultBufferSize = 64

// EventBus is an in-memory pub/sub of registry events. Delivery is
// at-most-once with no replay: a subscriber whose buffer is full misses the
// event and must re-read full state.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]subscription
	bufSize     int
	closed      bool
	logger      *slog.Logger
}

// subscription pairs a delivery channel with done, which is closed when the
// subscription ends so its context watcher can exit.
type subscription struct {
	ch   chan Event
	done chan struct{}
}

func (s subscription) end() {
	close(s.ch)
	close(s.done)
}

// NewEventBus creates a bus. Pass nil logger for default.
func NewEventBus(bufSize int, logger *slog.Logger) *EventBus {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		subscribers: make(map[string]subscription),
		bufSize:     bufSize,
		logger:      logger.With("component", "eventbus"),
	}
}

// Subscribe registers a listener. The subscription is removed and its
// channel closed when ctx is cancelled or Unsubscribe is called.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	sub := subscription{ch: make(chan Event, b.bufSize), done: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, subID
	}
	b.subscribers[subID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		select {
		case <-ctx.Done():
			b.Unsubscribe(subID)
		case <-sub.done:
		}
	}()

	return sub.ch, subID
}

// Publish delivers ev to every subscriber without blocking.
func (b *EventBus) Publish(ev Event) {
	// Sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"sub_id", id,
				"type", ev.Type,
				"subject", ev.Subject())
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBus) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	sub.end()

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later subscriptions are closed
// immediately.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		sub.end()
		delete(b.subscribers, id)
	}
	b.closed = true

	b.logger.Debug("event bus closed")
}
