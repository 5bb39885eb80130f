package handler

import (
	"context"
	"net/http"
	"time"
)

// StorePinger reports whether the backing store is reachable. The Mongo
// store pings the server; the in-memory store always succeeds.
type StorePinger func(ctx context.Context) error

// CircuitState reports the webhook dispatcher's circuit breaker state,
// surfaced on /health so an operator can see why alerts stopped flowing.
type CircuitState func() string

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	pingStore    StorePinger
	circuitState CircuitState
	startTime    time.Time
	version      string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(pingStore StorePinger, circuitState CircuitState, version string) *HealthHandler {
	return &HealthHandler{
		pingStore:    pingStore,
		circuitState: circuitState,
		startTime:    time.Now(),
		version:      version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Timestamp      string `json:"timestamp"`
	Store          string `json:"store"`
	WebhookCircuit string `json:"webhook_circuit"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready bool   `json:"ready"`
	Store string `json:"store"`
}

// Health returns the service health status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	storeStatus := "connected"
	if err := h.pingStore(r.Context()); err != nil {
		storeStatus = "disconnected"
	}

	response := HealthResponse{
		Status:         "healthy",
		Version:        h.version,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Store:          storeStatus,
		WebhookCircuit: h.circuitState(),
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
	}

	writeJSON(w, http.StatusOK, response)
}

// Ready returns the service readiness status
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := true
	storeStatus := "connected"

	if err := h.pingStore(r.Context()); err != nil {
		ready = false
		storeStatus = "disconnected"
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Ready: ready,
		Store: storeStatus,
	})
}
