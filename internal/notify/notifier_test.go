package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dandantas/vigil/internal/bus"
	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/internal/webhook"
	"github.com/dandantas/vigil/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedJob(t *testing.T, store *database.MemoryStore, hook *model.Webhook) *model.Job {
	t.Helper()

	job := &model.Job{
		Name:         "nightly-backup",
		Schedule:     "60s",
		GraceSeconds: 30,
		Webhook:      hook,
		Status:       model.StatusLate,
		NextExpect:   time.Now().UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.CreateJob(context.Background(), job))
	return job
}

func eventFor(job *model.Job) bus.Event {
	return bus.Event{
		JobID:   job.ID.Hex(),
		JobName: job.Name,
		Type:    bus.Escalated,
		From:    model.StatusLate,
		To:      model.StatusMissing,
		Reason:  "grace-expired",
		At:      time.Now().UTC(),
	}
}

func TestNotifierDeliversAndRecordsLog(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := database.NewMemoryStore()
	job := seedJob(t, store, &model.Webhook{
		URL:         srv.URL,
		RetryConfig: model.RetryConfig{MaxAttempts: 1, InitialDelayMs: 1, MaxDelayMs: 1, Multiplier: 2},
	})
	require.NoError(t, job.Webhook.Validate())

	b := bus.New()
	pool := worker.NewPool(1, 10)
	notifier := NewNotifier(store, store, pool, webhook.NewDispatcher(2*time.Second), nil)
	notifier.Register(b)
	pool.Start()

	b.Publish(eventFor(job))
	pool.Stop()

	assert.EqualValues(t, 1, calls.Load())

	logs, total, err := store.ListNotifications(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, "delivered", logs[0].FinalStatus)
	assert.Equal(t, "late->missing", logs[0].Transition)
	assert.Equal(t, job.ID, logs[0].JobID)
	assert.NotEmpty(t, logs[0].CorrelationID)
}

func TestNotifierFallsBackToDefaultWebhook(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := database.NewMemoryStore()
	job := seedJob(t, store, nil)

	fallback := &model.Webhook{URL: srv.URL}
	require.NoError(t, fallback.Validate())

	b := bus.New()
	pool := worker.NewPool(1, 10)
	notifier := NewNotifier(store, store, pool, webhook.NewDispatcher(2*time.Second), fallback)
	notifier.Register(b)
	pool.Start()

	b.Publish(eventFor(job))
	pool.Stop()

	assert.EqualValues(t, 1, calls.Load())
}

func TestNotifierSkipsJobsWithoutAnyWebhook(t *testing.T) {
	store := database.NewMemoryStore()
	job := seedJob(t, store, nil)

	b := bus.New()
	pool := worker.NewPool(1, 10)
	notifier := NewNotifier(store, store, pool, webhook.NewDispatcher(2*time.Second), nil)
	notifier.Register(b)
	pool.Start()

	b.Publish(eventFor(job))
	pool.Stop()

	_, total, err := store.ListNotifications(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestNotifierSkipsDeletedJobs(t *testing.T) {
	store := database.NewMemoryStore()
	job := seedJob(t, store, nil)
	ev := eventFor(job)

	deleted, err := store.DeleteJob(context.Background(), job.ID.Hex())
	require.NoError(t, err)
	require.True(t, deleted)

	b := bus.New()
	pool := worker.NewPool(1, 10)
	notifier := NewNotifier(store, store, pool, webhook.NewDispatcher(2*time.Second), nil)
	notifier.Register(b)
	pool.Start()

	b.Publish(ev)
	pool.Stop()

	_, total, err := store.ListNotifications(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestNotifierRecordsFailedDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	store := database.NewMemoryStore()
	job := seedJob(t, store, &model.Webhook{
		URL:         srv.URL,
		RetryConfig: model.RetryConfig{MaxAttempts: 1, InitialDelayMs: 1, MaxDelayMs: 1, Multiplier: 2},
	})
	require.NoError(t, job.Webhook.Validate())

	b := bus.New()
	pool := worker.NewPool(1, 10)
	notifier := NewNotifier(store, store, pool, webhook.NewDispatcher(2*time.Second), nil)
	notifier.Register(b)
	pool.Start()

	b.Publish(eventFor(job))
	pool.Stop()

	logs, _, err := store.ListNotifications(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "failed", logs[0].FinalStatus)
}
