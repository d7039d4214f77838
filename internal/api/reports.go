package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/notify"
	"github.com/campusshare/sharehub/internal/store"
)

// ReportsHandler handles issue reports and their review by admins.
type ReportsHandler struct {
	DB     *sqlx.DB
	Notify *notify.Dispatcher
}

type createReportRequest struct {
	RequestID   string `json:"request_id"`
	ItemID      string `json:"item_id"`
	IssueType   string `json:"issue_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateReportRequest struct {
	Status string `json:"status"`
}

// Create handles POST /api/reports. A report about a borrow request may only
// come from its requester or the item's owner.
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.IssueType == "" {
		req.IssueType = model.IssueOther
	}

	fe := fieldErrors{}
	if req.Title == "" {
		fe.add("title", "title is required")
	} else if len(req.Title) > maxTitleLength {
		fe.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	if len(req.Description) > maxDescriptionLength {
		fe.add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	if !model.ValidIssueType(req.IssueType) {
		fe.add("issue_type", "invalid issue type")
	}
	if len(fe) > 0 {
		jsonErrors(w, http.StatusBadRequest, fe)
		return
	}

	claims := GetClaims(r.Context())
	var requestID, itemID *string

	if req.RequestID != "" {
		br, err := store.GetRequest(r.Context(), h.DB, req.RequestID)
		if err != nil {
			slog.Error("failed to get request", "error", err)
			jsonError(w, http.StatusServiceUnavailable, "", "failed to get request")
			return
		}
		if br == nil {
			jsonError(w, http.StatusNotFound, "request_id", "request not found")
			return
		}
		if br.RequesterID != claims.UserID && br.ItemOwnerID != claims.UserID {
			jsonError(w, http.StatusForbidden, "request_id", "you are not part of this request")
			return
		}
		requestID = &br.ID
		itemID = &br.ItemID
	}

	if req.ItemID != "" && itemID == nil {
		item, err := store.GetItem(r.Context(), h.DB, req.ItemID)
		if err != nil {
			slog.Error("failed to get item", "error", err)
			jsonError(w, http.StatusServiceUnavailable, "", "failed to get item")
			return
		}
		if item == nil {
			jsonError(w, http.StatusNotFound, "item_id", "item not found")
			return
		}
		itemID = &item.ID
	}

	report, err := store.CreateReport(r.Context(), h.DB, claims.UserID, requestID, itemID, req.IssueType, req.Title, req.Description)
	if err != nil {
		slog.Error("failed to create report", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to create report")
		return
	}

	slog.Info("report filed", "user", claims.Email, "report", report.ID, "issue", report.IssueType)
	jsonResponse(w, http.StatusCreated, report)
}

// List handles GET /api/admin/reports?status=.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidReportStatus(status) {
		jsonError(w, http.StatusBadRequest, "status", "invalid status")
		return
	}

	reports, err := store.ListReports(r.Context(), h.DB, status)
	if err != nil {
		slog.Error("failed to list reports", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list reports")
		return
	}
	jsonResponse(w, http.StatusOK, reports)
}

// UpdateStatus handles PUT /api/admin/reports/{id} and notifies the reporter.
func (h *ReportsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateReportRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if !model.ValidReportStatus(req.Status) {
		jsonError(w, http.StatusBadRequest, "status", "invalid status")
		return
	}

	id := r.PathValue("id")
	n, err := store.UpdateReportStatus(r.Context(), h.DB, id, req.Status)
	if err != nil {
		slog.Error("failed to update report", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to update report")
		return
	}
	if n == 0 {
		jsonError(w, http.StatusNotFound, "", "report not found")
		return
	}

	report, err := store.GetReport(r.Context(), h.DB, id)
	if err != nil || report == nil {
		jsonError(w, http.StatusServiceUnavailable, "", "failed to load report")
		return
	}

	msg := fmt.Sprintf("Your report %q is now %s.", report.Title, strings.ReplaceAll(report.Status, "_", " "))
	if err := h.Notify.Notify(context.WithoutCancel(r.Context()), report.ReporterID, msg, model.NotifyReportUpdated); err != nil {
		slog.Warn("notification failed", "recipient", report.ReporterID, "error", err)
	}

	claims := GetClaims(r.Context())
	slog.Info("report updated", "user", claims.Email, "report", report.ID, "status", report.Status)
	jsonResponse(w, http.StatusOK, report)
}
