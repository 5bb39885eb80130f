package bus

import (
	"testing"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(jobID string) Event {
	return Event{
		JobID:   jobID,
		JobName: "nightly-backup",
		Type:    Escalated,
		From:    model.StatusHealthy,
		To:      model.StatusLate,
		Reason:  "deadline",
		At:      time.Now().UTC(),
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New()

	var first, second []Event
	b.Subscribe("first", func(ev Event) { first = append(first, ev) })
	b.Subscribe("second", func(ev Event) { second = append(second, ev) })

	b.Publish(testEvent("a"))
	b.Publish(testEvent("b"))

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, "a", first[0].JobID)
	assert.Equal(t, "b", first[1].JobID)
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	b := New()

	var got []string
	b.Subscribe("collector", func(ev Event) { got = append(got, ev.JobID) })

	for _, id := range []string{"1", "2", "3", "4"} {
		b.Publish(testEvent(id))
	}

	assert.Equal(t, []string{"1", "2", "3", "4"}, got)
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	b := New()

	var delivered int
	b.Subscribe("broken", func(Event) { panic("boom") })
	b.Subscribe("healthy", func(Event) { delivered++ })

	require.NotPanics(t, func() {
		b.Publish(testEvent("a"))
		b.Publish(testEvent("b"))
	})

	assert.Equal(t, 2, delivered)
}

func TestPublishWithNoSubscribers(t *testing.T) {
	b := New()
	require.NotPanics(t, func() { b.Publish(testEvent("a")) })
}
