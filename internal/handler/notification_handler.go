package handler

import (
	"net/http"

	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/model"
)

// NotificationHandler exposes webhook delivery logs
type NotificationHandler struct {
	store database.NotificationStore
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(store database.NotificationStore) *NotificationHandler {
	return &NotificationHandler{
		store: store,
	}
}

// NotificationListResponse represents the notification log list response
type NotificationListResponse struct {
	Total   int64                       `json:"total"`
	Page    int                         `json:"page"`
	Limit   int                         `json:"limit"`
	Results []model.NotificationSummary `json:"results"`
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parseQueryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := parseQueryInt(r, "limit", 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	logs, total, err := h.store.ListNotifications(r.Context(), page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	summaries := make([]model.NotificationSummary, len(logs))
	for i := range logs {
		summaries[i] = logs[i].ToSummary()
	}

	writeJSON(w, http.StatusOK, NotificationListResponse{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Results: summaries,
	})
}
