package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/internal/service"
)

// JobHandler handles job CRUD and lifecycle operations
type JobHandler struct {
	service *service.JobService
}

// NewJobHandler creates a new job handler
func NewJobHandler(service *service.JobService) *JobHandler {
	return &JobHandler{
		service: service,
	}
}

// ListResponse represents the job list response
type ListResponse struct {
	Total   int             `json:"total"`
	Results []model.JobView `json:"results"`
}

// DeleteResponse represents the delete response
type DeleteResponse struct {
	Message string `json:"message"`
}

// Create handles POST /api/v1/jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var job model.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.service.Create(r.Context(), &job); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, job.ToView())
}

// List handles GET /api/v1/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Total:   len(views),
		Results: views,
	})
}

// Get handles GET /api/v1/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job.ToView())
}

// Update handles PUT /api/v1/jobs/{id}
func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	var req service.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job.ToView())
}

// Delete handles DELETE /api/v1/jobs/{id}
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{
		Message: "Job deleted successfully",
	})
}

// Pause handles POST /api/v1/jobs/{id}/pause
func (h *JobHandler) Pause(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.service.Pause(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job.ToView())
}

// Resume handles POST /api/v1/jobs/{id}/resume
func (h *JobHandler) Resume(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.service.Resume(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job.ToView())
}

// Events handles GET /api/v1/jobs/{id}/events
func (h *JobHandler) Events(w http.ResponseWriter, r *http.Request, id string) {
	limit := parseQueryInt(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}

	events, err := h.service.Events(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(events),
		"results": events,
	})
}

// trimID extracts the id segment from a path under prefix
func trimID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	return strings.Split(id, "/")[0]
}
