package worker

import (
	"github.com/dandantas/vigil/internal/bus"
)

// Task is one queued notification delivery.
type Task struct {
	Event         bus.Event
	CorrelationID string
}
