// ABOUTME: In-memory fan-out broadcaster for persisted inbox messages
// ABOUTME: Subscribers follow one thread or every thread and receive messages as they are stored

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/coven-inbox/internal/store"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// AllThreads subscribes to messages from every thread.
	AllThreads = "*"
)

// EventBroadcaster provides in-memory pub/sub for persisted messages.
// It is passed explicitly to whoever needs it; there is no package-level instance.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *store.Message // threadID -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		subscribers: make(map[string]map[string]chan *store.Message),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for messages on threadID, or on every thread when
// threadID is AllThreads or empty. The subscription is removed and its
// channel closed when ctx is cancelled.
func (b *EventBroadcaster) Subscribe(ctx context.Context, threadID string) (<-chan *store.Message, string) {
	if threadID == "" {
		threadID = AllThreads
	}
	subID := uuid.New().String()
	ch := make(chan *store.Message, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[threadID]; !ok {
		b.subscribers[threadID] = make(map[string]chan *store.Message)
	}
	b.subscribers[threadID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "thread_id", threadID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(threadID, subID)
	}()

	return ch, subID
}

// Publish delivers msg to subscribers of its thread and to AllThreads
// subscribers. Non-blocking: messages are dropped for subscribers whose
// channels are full.
func (b *EventBroadcaster) Publish(msg *store.Message) {
	b.mu.RLock()
	var targets []chan *store.Message
	for _, key := range []string{msg.ThreadID, AllThreads} {
		for _, ch := range b.subscribers[key] {
			targets = append(targets, ch)
		}
	}

	// Sends happen under the read lock so Unsubscribe cannot close a channel mid-send
	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
			b.logger.Debug("dropped message for slow subscriber",
				"thread_id", msg.ThreadID,
				"message_id", msg.ID)
		}
	}
	b.mu.RUnlock()
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBroadcaster) Unsubscribe(threadID, subID string) {
	if threadID == "" {
		threadID = AllThreads
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[threadID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, threadID)
	}

	b.logger.Debug("subscriber removed", "thread_id", threadID, "sub_id", subID)
}

// SubscriberCount returns the number of active subscriptions.
func (b *EventBroadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.subscribers {
		n += len(subs)
	}
	return n
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for threadID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, threadID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
