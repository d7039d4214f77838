package api

import (
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/campusshare/sharehub/internal/lending"
	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/store"
)

// RequestsHandler exposes the borrow request lifecycle.
type RequestsHandler struct {
	DB      *sqlx.DB
	Lending *lending.Manager
}

type createRequestRequest struct {
	ItemID       string `json:"item_id"`
	TargetReturn string `json:"target_return"`
	// EndDate is the older client's name for TargetReturn.
	EndDate string `json:"end_date"`
}

func (req createRequestRequest) target() string {
	if req.TargetReturn != "" {
		return req.TargetReturn
	}
	return req.EndDate
}

type respondRequest struct {
	Action string `json:"action"`
}

// Create handles POST /api/requests.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	created, err := h.Lending.CreateRequest(r.Context(), claims.UserID, req.ItemID, req.target())
	if err != nil {
		lendingError(w, err)
		return
	}

	slog.Info("borrow requested", "user", claims.Email, "request", created.ID, "item", created.ItemID)
	jsonResponse(w, http.StatusCreated, map[string]any{
		"success":    true,
		"request_id": created.ID,
	})
}

// Respond handles POST /api/requests/{id}/respond.
func (h *RequestsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	decision, err := lending.ParseDecision(req.Action)
	if err != nil {
		lendingError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	resp, err := h.Lending.RespondToRequest(r.Context(), claims.UserID, r.PathValue("id"), decision)
	if err != nil {
		lendingError(w, err)
		return
	}

	slog.Info("borrow request decided", "user", claims.Email, "request", resp.RequestID, "status", resp.Status)
	jsonResponse(w, http.StatusOK, resp)
}

// Return handles POST /api/requests/{id}/return.
func (h *RequestsHandler) Return(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	returned, err := h.Lending.MarkReturned(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		lendingError(w, err)
		return
	}

	slog.Info("item returned", "user", claims.Email, "request", returned.ID, "item", returned.ItemID)
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// Incoming handles GET /api/requests/incoming: requests for the caller's items.
func (h *RequestsHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	f := store.RequestFilter{ItemOwnerID: callerID(r)}
	if !statusFilter(w, r, &f) {
		return
	}
	h.list(w, r, f, true)
}

// Outgoing handles GET /api/requests/outgoing: requests the caller made.
func (h *RequestsHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	f := store.RequestFilter{RequesterID: callerID(r)}
	if !statusFilter(w, r, &f) {
		return
	}
	h.list(w, r, f, false)
}

// Borrowed handles GET /api/requests/borrowed: items the caller holds now.
func (h *RequestsHandler) Borrowed(w http.ResponseWriter, r *http.Request) {
	returned := false
	h.list(w, r, store.RequestFilter{
		RequesterID: callerID(r),
		Status:      model.RequestApproved,
		Returned:    &returned,
	}, false)
}

// list writes the requests matching f. Owners see the requester's shared
// contact, requesters see the owner's.
func (h *RequestsHandler) list(w http.ResponseWriter, r *http.Request, f store.RequestFilter, asOwner bool) {
	requests, err := store.ListRequests(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list requests", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.BorrowRequest{}
	}

	counterpart := func(req *model.BorrowRequest) string {
		if asOwner {
			return req.RequesterID
		}
		return req.ItemOwnerID
	}
	ids := make([]string, 0, len(requests))
	for i := range requests {
		ids = append(ids, counterpart(&requests[i]))
	}
	contacts, err := store.ListContacts(r.Context(), h.DB, ids)
	if err != nil {
		slog.Error("failed to load contacts", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list requests")
		return
	}
	for i := range requests {
		c := contacts[counterpart(&requests[i])]
		if asOwner {
			requests[i].RequesterContact = c
		} else {
			requests[i].OwnerContact = c
		}
	}

	jsonResponse(w, http.StatusOK, requests)
}

// statusFilter applies an optional ?status= to f.
func statusFilter(w http.ResponseWriter, r *http.Request, f *store.RequestFilter) bool {
	switch status := r.URL.Query().Get("status"); status {
	case "":
	case model.RequestPending, model.RequestApproved, model.RequestDenied:
		f.Status = status
	default:
		jsonError(w, http.StatusBadRequest, "status", "invalid status")
		return false
	}
	return true
}
