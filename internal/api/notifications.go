package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/campusshare/sharehub/internal/notify"
)

// NotificationsHandler serves the caller's notification feed.
type NotificationsHandler struct {
	Notify *notify.Dispatcher
}

// List handles GET /api/notifications?limit=N.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	feed, err := h.Notify.Recent(r.Context(), callerID(r), limit)
	if err != nil {
		slog.Error("failed to list notifications", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list notifications")
		return
	}
	jsonResponse(w, http.StatusOK, feed)
}

// MarkAllRead handles POST /api/notifications/read.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notify.MarkAllRead(r.Context(), callerID(r))
	if err != nil {
		slog.Error("failed to mark notifications read", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to mark notifications read")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"updated": n})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Notify.MarkRead(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		slog.Error("failed to mark notification read", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to mark notification read")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, "", "notification not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}
