package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dandantas/vigil/internal/bus"
	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/metrics"
	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/internal/webhook"
	"github.com/dandantas/vigil/internal/worker"
	"github.com/google/uuid"
)

// Notifier turns status change events into webhook deliveries. It
// subscribes to the event bus, hands each event to the worker pool, and
// records every delivery outcome in the notification store. Jobs without
// a webhook fall back to the instance-wide default, if one is configured.
type Notifier struct {
	jobs           database.JobStore
	store          database.NotificationStore
	pool           *worker.Pool
	dispatcher     *webhook.Dispatcher
	defaultWebhook *model.Webhook
}

// NewNotifier creates a notifier and installs it as the pool's deliverer.
func NewNotifier(
	jobs database.JobStore,
	store database.NotificationStore,
	pool *worker.Pool,
	dispatcher *webhook.Dispatcher,
	defaultWebhook *model.Webhook,
) *Notifier {
	n := &Notifier{
		jobs:           jobs,
		store:          store,
		pool:           pool,
		dispatcher:     dispatcher,
		defaultWebhook: defaultWebhook,
	}
	pool.SetDeliverer(n.deliver)
	return n
}

// Register subscribes the notifier to the bus.
func (n *Notifier) Register(b *bus.Bus) {
	b.Subscribe("notifier", n.handle)
}

// handle runs on the publisher's goroutine, so it only enqueues.
func (n *Notifier) handle(ev bus.Event) {
	task := worker.Task{
		Event:         ev,
		CorrelationID: uuid.New().String(),
	}

	if err := n.pool.Submit(task); err != nil {
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		slog.Warn("Dropping notification, queue full",
			"job_id", ev.JobID,
			"job_name", ev.JobName,
			"transition", transitionLabel(ev),
			"error", err,
		)
	}
}

// deliver runs on a pool worker and performs the actual webhook call.
func (n *Notifier) deliver(ctx context.Context, task worker.Task) {
	ev := task.Event

	job, err := n.jobs.GetJob(ctx, ev.JobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Job deleted between the event and delivery; nothing to notify.
			slog.Debug("Skipping notification for deleted job", "job_id", ev.JobID)
			return
		}
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		slog.Error("Failed to load job for notification",
			"job_id", ev.JobID,
			"correlation_id", task.CorrelationID,
			"error", err,
		)
		return
	}

	hook := job.Webhook
	if hook == nil {
		hook = n.defaultWebhook
	}
	if hook == nil {
		slog.Debug("No webhook configured for job, skipping notification",
			"job_id", ev.JobID,
			"job_name", job.Name,
		)
		return
	}

	payload := webhook.FormatStatusPayload(
		ev.JobID, job.Name, ev.From, ev.To, ev.Reason, ev.At, task.CorrelationID)

	log, err := n.dispatcher.Send(
		ctx, job.ID, job.Name, *hook, payload, transitionLabel(ev), task.CorrelationID)
	if err != nil {
		slog.Error("Notification delivery failed",
			"job_id", ev.JobID,
			"job_name", job.Name,
			"correlation_id", task.CorrelationID,
			"error", err,
		)
	}
	metrics.NotificationsTotal.WithLabelValues(log.FinalStatus).Inc()

	if err := n.store.InsertNotification(ctx, log); err != nil {
		slog.Error("Failed to persist notification log",
			"job_id", ev.JobID,
			"correlation_id", task.CorrelationID,
			"error", err,
		)
	}
}

func transitionLabel(ev bus.Event) string {
	return fmt.Sprintf("%s->%s", ev.From, ev.To)
}
