// ABOUTME: Channel registry mapping channel names to delivery adapters
// ABOUTME: Resolves outbound channels and fails closed on unknown names

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrUnknownChannel is returned when no adapter is registered for a channel
var ErrUnknownChannel = errors.New("unknown channel")

// ErrDuplicateChannel is returned when registering a name twice
var ErrDuplicateChannel = errors.New("channel already registered")

// Deliverer sends an outbound message body to a recipient on one channel.
// The recipient ID is channel-specific (page-scoped user id, room id, visitor id).
type Deliverer interface {
	Deliver(ctx context.Context, recipientID, body string) error
}

// DeliveryError reports an adapter failure. Reason carries the provider's
// error text verbatim so callers can surface it.
type DeliveryError struct {
	Channel string
	Reason  string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %s", e.Channel, e.Reason)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Registry holds the adapters for every configured channel.
// It is safe for concurrent use; Replace swaps the whole set atomically.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Deliverer
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters: make(map[string]Deliverer),
		logger:   logger.With("component", "channels"),
	}
}

// Register adds an adapter under name.
func (r *Registry) Register(name string, d Deliverer) error {
	if name == "" {
		return errors.New("channel name required")
	}
	if d == nil {
		return fmt.Errorf("channel %q: nil deliverer", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	r.adapters[name] = d
	r.logger.Debug("registered channel", "channel", name)
	return nil
}

// Resolve returns the adapter for name, or ErrUnknownChannel.
func (r *Registry) Resolve(name string) (Deliverer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	return d, nil
}

// Replace swaps the registered adapters for a new set.
func (r *Registry) Replace(adapters map[string]Deliverer) {
	next := make(map[string]Deliverer, len(adapters))
	for name, d := range adapters {
		if name == "" || d == nil {
			continue
		}
		next[name] = d
	}

	r.mu.Lock()
	r.adapters = next
	r.mu.Unlock()

	r.logger.Info("channel registry replaced", "channels", len(next))
}

// Names returns the registered channel names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
