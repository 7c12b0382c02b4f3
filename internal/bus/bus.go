package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"conductor/internal/api"
	"conductor/pkg/logging"
)

// Handler processes one event. A handler that blocks delays delivery of the
// event to later handlers; cancellation comes from the publish context.
type Handler func(ctx context.Context, event api.Event) error

// Subscription is the handle returned by Subscribe. It identifies a
// (pattern, handler) pair for Unsubscribe.
type Subscription struct {
	id      string
	pattern string
	handler Handler
}

// ID returns the unique identifier of the subscription.
func (s *Subscription) ID() string { return s.id }

// Pattern returns the pattern the subscription was registered with.
func (s *Subscription) Pattern() string { return s.pattern }

// DefaultHistorySize is the number of delivered events the bus retains for
// inspection.
const DefaultHistorySize = 256

// Bus delivers named events to interested subscribers with failure
// isolation. Events are processed serially in publication order; handlers
// registered earlier are invoked earlier. A handler registered during a
// publish sees subsequent events only.
type Bus struct {
	mu   sync.RWMutex
	subs []*Subscription

	queueMu  sync.Mutex
	queue    []api.Event
	draining bool

	historyMu  sync.Mutex
	history    []api.Event
	historyCap int
}

// New creates an event bus with the default history size.
func New() *Bus {
	return &Bus{historyCap: DefaultHistorySize}
}

// Subscribe registers a handler for events whose type matches pattern.
// The pattern is dot-delimited; a "*" segment matches exactly one segment,
// and the whole pattern "*" matches every event.
func (b *Bus) Subscribe(pattern string, handler Handler) *Subscription {
	sub := &Subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: handler,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes a subscription. It is idempotent: unsubscribing an
// already-removed subscription is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == sub.id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to all matching subscribers in registration
// order. It returns after the event (and any follow-up error events) have
// been delivered, unless a publish is already draining on another goroutine
// or a handler publishes re-entrantly; those events are queued and delivered
// by the active drain loop, preserving bus-wide FIFO order.
func (b *Bus) Publish(ctx context.Context, event api.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.queueMu.Lock()
	b.queue = append(b.queue, event)
	if b.draining {
		b.queueMu.Unlock()
		return
	}
	b.draining = true
	b.queueMu.Unlock()

	for {
		b.queueMu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.queueMu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.queueMu.Unlock()

		b.deliver(ctx, next)
	}
}

// deliver invokes all matching handlers for one event, isolating failures.
func (b *Bus) deliver(ctx context.Context, event api.Event) {
	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if Match(sub.pattern, event.Type) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		if err := b.invoke(ctx, sub, event); err != nil {
			logging.Error("EventBus", err, "Handler %s failed for event %s", sub.id, event.Type)

			// A failing handler on a module.error event is only logged;
			// publishing another error event from that path would recurse.
			if event.Type != api.EventModuleError {
				b.enqueue(api.Event{
					ID:         uuid.NewString(),
					Type:       api.EventModuleError,
					ModuleName: event.ModuleName,
					Payload: map[string]interface{}{
						"source":       "handler",
						"subscription": sub.id,
						"pattern":      sub.pattern,
						"event_type":   event.Type,
						"error":        err.Error(),
					},
					Timestamp: time.Now(),
				})
			}
		}
	}

	b.record(event)
}

// invoke runs a single handler, converting panics into errors.
func (b *Bus) invoke(ctx context.Context, sub *Subscription, event api.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return sub.handler(ctx, event)
}

// enqueue appends a follow-up event to the pending queue. Callers must be on
// the drain loop already.
func (b *Bus) enqueue(event api.Event) {
	b.queueMu.Lock()
	b.queue = append(b.queue, event)
	b.queueMu.Unlock()
}

// record appends the event to the bounded history.
func (b *Bus) record(event api.Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history = append(b.history, event)
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}
}

// Recent returns up to n most recently delivered events, oldest first.
func (b *Bus) Recent(n int) []api.Event {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	out := make([]api.Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// Match reports whether a subscription pattern matches an event type.
// Matching rules: "*" matches everything; otherwise the pattern and type
// must have the same number of dot-delimited segments, and each pattern
// segment must equal the type segment or be "*".
func Match(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == eventType {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	typeParts := strings.Split(eventType, ".")
	if len(patternParts) != len(typeParts) {
		return false
	}
	for i, p := range patternParts {
		if p != "*" && p != typeParts[i] {
			return false
		}
	}
	return true
}
