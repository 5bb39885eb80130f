package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dandantas/vigil/internal/service"
)

// maxPingBody caps the accepted ping payload size.
const maxPingBody = 64 * 1024

// PingHandler handles inbound liveness pings
type PingHandler struct {
	service *service.PingService
}

// NewPingHandler creates a new ping handler
func NewPingHandler(service *service.PingService) *PingHandler {
	return &PingHandler{
		service: service,
	}
}

// PingResponse represents the ping acknowledgement
type PingResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	NextExpect string `json:"next_expect"`
}

// Ping handles GET and POST /api/v1/pings/{id}. GET exists so a cron
// entry can report in with a bare curl; POST additionally accepts a JSON
// body that is matched against the job's fail rules.
func (h *PingHandler) Ping(w http.ResponseWriter, r *http.Request, id string) {
	receivedAt := time.Now().UTC()

	var body []byte
	if r.Method == http.MethodPost && r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxPingBody))
		if err != nil {
			slog.Warn("Failed to read ping body", "job_id", id, "error", err)
			body = nil
		}
	}

	job, err := h.service.RecordPing(r.Context(), id, receivedAt, body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PingResponse{
		JobID:      job.ID.Hex(),
		Status:     string(job.DisplayStatus()),
		NextExpect: job.NextExpect.UTC().Format(time.RFC3339),
	})
}
