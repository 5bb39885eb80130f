package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dandantas/vigil/internal/bus"
	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/internal/service"
	"github.com/dandantas/vigil/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *database.MemoryStore) {
	t.Helper()

	store := database.NewMemoryStore()
	b := bus.New()

	router := NewRouter(
		NewJobHandler(service.NewJobService(store, store)),
		NewPingHandler(service.NewPingService(store, store, b)),
		NewNotificationHandler(store),
		NewHealthHandler(func(context.Context) error { return nil }, func() string { return "closed" }, "test"),
		middleware.CORSConfig{AllowedOrigins: "*"},
	)

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func createTestJob(t *testing.T, srv *httptest.Server) model.JobView {
	t.Helper()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs", map[string]interface{}{
		"name":       "nightly-backup",
		"schedule":   "60s",
		"grace_time": 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var view model.JobView
	decode(t, resp, &view)
	return view
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create.
	view := createTestJob(t, srv)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, model.StatusHealthy, view.Status)
	assert.NotEmpty(t, view.NextExpect)

	// Get.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs/"+view.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.JobView
	decode(t, resp, &got)
	assert.Equal(t, "nightly-backup", got.Name)

	// List.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ListResponse
	decode(t, resp, &list)
	assert.Equal(t, 1, list.Total)

	// Update.
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/jobs/"+view.ID, map[string]interface{}{
		"description": "pg_dump to S3",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &got)
	assert.Equal(t, "pg_dump to S3", got.Description)

	// Delete.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/jobs/"+view.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateJobValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs", map[string]interface{}{
		"name":     "bad",
		"schedule": "whenever",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPingEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	view := createTestJob(t, srv)

	// GET works for bare curl callers.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/pings/"+view.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack PingResponse
	decode(t, resp, &ack)
	assert.Equal(t, view.ID, ack.JobID)
	assert.Equal(t, string(model.StatusHealthy), ack.Status)
	assert.NotEmpty(t, ack.NextExpect)

	// Unknown job.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/pings/65b2f0000000000000000000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPingWithFailRuleBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs", map[string]interface{}{
		"name":       "etl",
		"schedule":   "60s",
		"grace_time": 30,
		"fail_rules": []map[string]interface{}{
			{"name": "nonzero-exit", "expression": "$.exit_code", "operator": "ne", "expected_value": 0},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view model.JobView
	decode(t, resp, &view)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/pings/"+view.ID, map[string]interface{}{
		"exit_code": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack PingResponse
	decode(t, resp, &ack)
	assert.Equal(t, string(model.StatusMissing), ack.Status)
}

func TestPauseResumeEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	view := createTestJob(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs/"+view.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.JobView
	decode(t, resp, &got)
	assert.Equal(t, model.StatusPaused, got.Status)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs/"+view.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &got)
	assert.Equal(t, model.StatusHealthy, got.Status)

	// Pause is POST-only.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs/"+view.ID+"/pause", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestEventsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	view := createTestJob(t, srv)

	// A ping leaves an audit entry.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/pings/"+view.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs/"+view.ID+"/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Total   int              `json:"total"`
		Results []model.JobEvent `json:"results"`
	}
	decode(t, resp, &body)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, model.EventPing, body.Results[0].Type)
}

func TestNotificationsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	require.NoError(t, store.InsertNotification(context.Background(), &model.NotificationLog{
		JobName:     "backup",
		Transition:  "late->missing",
		FinalStatus: "delivered",
	}))

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body NotificationListResponse
	decode(t, resp, &body)
	assert.EqualValues(t, 1, body.Total)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "late->missing", body.Results[0].Transition)
}

func TestNotificationsEndpointClampsPagination(t *testing.T) {
	srv, store := newTestServer(t)

	require.NoError(t, store.InsertNotification(context.Background(), &model.NotificationLog{
		JobName:     "backup",
		FinalStatus: "delivered",
	}))

	// page=0 and negative values fold to the first page instead of
	// computing a negative offset.
	for _, query := range []string{"?page=0", "?page=-3", "?page=0&limit=0", "?limit=-1"} {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/notifications"+query, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, query)

		var body NotificationListResponse
		decode(t, resp, &body)
		assert.Equal(t, 1, body.Page, query)
		assert.Len(t, body.Results, 1, query)
	}
}

func TestCreateJobDuplicateNameConflicts(t *testing.T) {
	srv, _ := newTestServer(t)

	createTestJob(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs", map[string]interface{}{
		"name":       "nightly-backup",
		"schedule":   "60s",
		"grace_time": 30,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	decode(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Store)
	assert.Equal(t, "closed", health.WebhookCircuit)

	resp = doJSON(t, http.MethodGet, srv.URL+"/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/jobs", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}
