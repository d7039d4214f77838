package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/store"
)

// Audit listing limits.
const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AdminHandler handles user moderation and maintenance endpoints (admin only).
type AdminHandler struct {
	DB    *sqlx.DB
	Items *ItemsHandler
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type blockRequest struct {
	Blocked bool `json:"blocked"`
}

// ListUsers handles GET /api/admin/users?q=.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB, r.URL.Query().Get("q"))
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list users")
		return
	}
	jsonResponse(w, http.StatusOK, users)
}

// UpdateRole handles PUT /api/admin/users/{id}/role.
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims := GetClaims(r.Context())
	if id == claims.UserID {
		jsonError(w, http.StatusBadRequest, "", "cannot change your own role")
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "role", "invalid role")
		return
	}

	n, err := store.UpdateUserRole(r.Context(), h.DB, id, req.Role)
	if err != nil {
		slog.Error("failed to update user role", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to update user")
		return
	}
	if n == 0 {
		jsonError(w, http.StatusNotFound, "", "user not found")
		return
	}

	h.respondUser(w, r, id)
	slog.Info("user role updated", "user", claims.Email, "target_user", id, "new_role", req.Role)
}

// Block handles PUT /api/admin/users/{id}/block. Blocked users are refused
// on their next request; their tokens are not revoked individually.
func (h *AdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims := GetClaims(r.Context())
	if id == claims.UserID {
		jsonError(w, http.StatusBadRequest, "", "cannot block yourself")
		return
	}

	var req blockRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	n, err := store.SetUserBlocked(r.Context(), h.DB, id, req.Blocked)
	if err != nil {
		slog.Error("failed to block user", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to update user")
		return
	}
	if n == 0 {
		jsonError(w, http.StatusNotFound, "", "user not found")
		return
	}

	h.respondUser(w, r, id)
	slog.Info("user block updated", "user", claims.Email, "target_user", id, "blocked", req.Blocked)
}

// DeleteUser handles DELETE /api/admin/users/{id}. Users holding a borrowed
// item are refused; pending requests on their items are denied.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims := GetClaims(r.Context())
	if id == claims.UserID {
		jsonError(w, http.StatusBadRequest, "", "cannot delete yourself")
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to get user")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "", "user not found")
		return
	}

	denied, err := store.DeleteUser(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrUserBorrowing) {
		jsonError(w, http.StatusConflict, "", "user still has a borrowed item")
		return
	}
	if err != nil {
		slog.Error("failed to delete user", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to delete user")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	for _, req := range denied {
		msg := fmt.Sprintf("Your request for %q was denied because the owner's account was removed.", req.ItemTitle)
		if err := h.Items.Notify.Notify(ctx, req.RequesterID, msg, model.NotifyRequestDenied); err != nil {
			slog.Warn("notification failed", "recipient", req.RequesterID, "error", err)
		}
	}

	slog.Info("user deleted", "user", claims.Email, "deleted_user", target.Email, "denied_pending", len(denied))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *AdminHandler) respondUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil || user == nil {
		jsonError(w, http.StatusServiceUnavailable, "", "failed to load user")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// ListItems handles GET /api/admin/items?q=&category=: every listed item.
func (h *AdminHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	h.Items.list(w, r, store.ItemFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("q"),
	})
}

// DeleteItem handles DELETE /api/admin/items/{id}.
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.Items.load(w, r)
	if !ok {
		return
	}
	h.Items.remove(w, r, item)
}

// Reconcile handles POST /api/admin/reconcile.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	n, err := store.ReconcileAvailability(r.Context(), h.DB)
	if err != nil {
		slog.Error("availability reconciliation failed", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "reconciliation failed")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("availability reconciled", "user", claims.Email, "repaired", n)
	jsonResponse(w, http.StatusOK, map[string]int64{"repaired": n})
}

// Audit handles GET /api/admin/audit?type=&limit=.
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	list, err := store.ListAuditEvents(r.Context(), h.DB, r.URL.Query().Get("type"), limit)
	if err != nil {
		slog.Error("failed to list audit events", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list audit events")
		return
	}
	jsonResponse(w, http.StatusOK, list)
}
