package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dandantas/vigil/internal/model"
)

// EventType classifies a status-transition event.
type EventType string

const (
	// Escalated means the sweeper (or a fail signal) promoted a job's state.
	Escalated EventType = "escalated"
	// Recovered means a ping brought a late or missing job back to healthy.
	Recovered EventType = "recovered"
)

// Event is one committed status transition. Events are published on the
// goroutine that committed the transition, immediately after the store
// write, so per-job delivery order matches commit order.
type Event struct {
	JobID   string
	JobName string
	Type    EventType
	From    model.JobStatus
	To      model.JobStatus
	Reason  string // "deadline", "grace-expired", "fail-signal", "ping"
	At      time.Time
}

// Handler consumes events. Handlers run synchronously on the publishing
// goroutine; a slow handler should hand off to its own worker.
type Handler func(Event)

type subscriber struct {
	name    string
	handler Handler
}

// Bus is an in-process fan-out of status-transition events. Delivery is
// at-least-once per subscriber; a panicking handler is isolated so it can
// never fail the transition that emitted the event.
type Bus struct {
	mu   sync.RWMutex
	subs []subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a named handler for all subsequent events.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscriber{name: name, handler: h})
}

// Publish delivers the event to every subscriber in registration order.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked",
				"subscriber", s.name,
				"job_id", ev.JobID,
				"event_type", string(ev.Type),
				"panic", r,
			)
		}
	}()
	s.handler(ev)
}
