package session

import (
	"sync"

	"github.com/reelgrab/reelgrab/pkg/logger"
)

var relayLogger = logger.Get("Relay")

// DefaultRelayCapacity bounds the number of undelivered events a relay
// will hold. Progress updates are throttled upstream, so the buffer
// only fills if the delivery path has stalled entirely.
const DefaultRelayCapacity = 64

// Relay turns extractor progress callbacks - which fire from a worker
// context - in to an ordered stream of events read by exactly one
// session goroutine. Emit never blocks the caller and never fails:
// events offered after Close, or while the buffer is saturated, are
// silently discarded (with a log for the latter). Events are delivered
// in emission order with no reordering or coalescing.
type Relay struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

func NewRelay(capacity int) *Relay {
	if capacity <= 0 {
		capacity = DefaultRelayCapacity
	}

	return &Relay{events: make(chan Event, capacity)}
}

// Emit offers an event for delivery. Safe to call from any goroutine,
// including after the relay has closed - a post-close emit is a no-op,
// not an error.
func (relay *Relay) Emit(event Event) {
	relay.mu.Lock()
	defer relay.mu.Unlock()

	if relay.closed {
		return
	}

	select {
	case relay.events <- event:
	default:
		relayLogger.Emit(logger.WARNING, "Relay buffer saturated, dropping %s event\n", event.Status)
	}
}

// Events exposes the delivery channel. The owning session goroutine
// must be the only reader; the channel closes when the relay closes.
func (relay *Relay) Events() <-chan Event {
	return relay.events
}

// Close tears the relay down. Idempotent; emits racing with Close are
// either delivered or dropped, never a panic.
func (relay *Relay) Close() {
	relay.mu.Lock()
	defer relay.mu.Unlock()

	if relay.closed {
		return
	}

	relay.closed = true
	close(relay.events)
}
