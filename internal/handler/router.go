package handler

import (
	"net/http"
	"strings"

	"github.com/dandantas/vigil/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router handles HTTP routing
type Router struct {
	jobHandler          *JobHandler
	pingHandler         *PingHandler
	notificationHandler *NotificationHandler
	healthHandler       *HealthHandler
	corsConfig          middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	jobHandler *JobHandler,
	pingHandler *PingHandler,
	notificationHandler *NotificationHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		jobHandler:          jobHandler,
		pingHandler:         pingHandler,
		notificationHandler: notificationHandler,
		healthHandler:       healthHandler,
		corsConfig:          corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Operational endpoints (no middleware)
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// API endpoints
	mux.HandleFunc("/api/v1/jobs", rt.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", rt.handleJobsWithID)
	mux.HandleFunc("/api/v1/pings/", rt.handlePings)
	mux.HandleFunc("/api/v1/notifications", rt.notificationHandler.List)

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

// handleJobs routes job collection endpoints
func (rt *Router) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.jobHandler.List(w, r)
	case http.MethodPost:
		rt.jobHandler.Create(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleJobsWithID routes individual job endpoints
func (rt *Router) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	id := strings.Split(path, "/")[0]

	if id == "" {
		writeError(w, http.StatusNotFound, "Job id required")
		return
	}

	switch {
	case strings.HasSuffix(path, "/pause"):
		rt.requirePost(w, r, id, rt.jobHandler.Pause)
	case strings.HasSuffix(path, "/resume"):
		rt.requirePost(w, r, id, rt.jobHandler.Resume)
	case strings.HasSuffix(path, "/events"):
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.jobHandler.Events(w, r, id)
	default:
		switch r.Method {
		case http.MethodGet:
			rt.jobHandler.Get(w, r, id)
		case http.MethodPut:
			rt.jobHandler.Update(w, r, id)
		case http.MethodDelete:
			rt.jobHandler.Delete(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handlePings routes ping endpoints
func (rt *Router) handlePings(w http.ResponseWriter, r *http.Request) {
	id := trimID(r.URL.Path, "/api/v1/pings/")
	if id == "" {
		writeError(w, http.StatusNotFound, "Job id required")
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodPost:
		rt.pingHandler.Ping(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (rt *Router) requirePost(w http.ResponseWriter, r *http.Request, id string, fn func(http.ResponseWriter, *http.Request, string)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	fn(w, r, id)
}
