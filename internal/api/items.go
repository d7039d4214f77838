package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusshare/sharehub/internal/events"
	"github.com/campusshare/sharehub/internal/imaging"
	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/notify"
	"github.com/campusshare/sharehub/internal/store"
)

// Field limits for items.
const (
	maxTitleLength       = 120
	maxDescriptionLength = 2000
)

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	DB            *sqlx.DB
	Notify        *notify.Dispatcher
	Events        events.Publisher
	MaxImageBytes int64
}

type itemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
}

// normalize trims input, applies defaults and returns any validation errors.
func (req *itemRequest) normalize() fieldErrors {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Category == "" {
		req.Category = model.CategoryOther
	}
	if req.Condition == "" {
		req.Condition = model.ConditionGood
	}

	fe := fieldErrors{}
	switch {
	case req.Title == "":
		fe.add("title", "title is required")
	case len(req.Title) > maxTitleLength:
		fe.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	if len(req.Description) > maxDescriptionLength {
		fe.add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	if !model.ValidCategory(req.Category) {
		fe.add("category", "invalid category")
	}
	if !model.ValidCondition(req.Condition) {
		fe.add("condition", "invalid condition")
	}
	return fe
}

// Browse handles GET /api/items: available items of other users.
func (h *ItemsHandler) Browse(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !model.ValidCategory(category) {
		jsonError(w, http.StatusBadRequest, "category", "invalid category")
		return
	}

	h.list(w, r, store.ItemFilter{
		ExcludeOwnerID: callerID(r),
		AvailableOnly:  true,
		Borrowable:     true,
		Category:       category,
		Search:         r.URL.Query().Get("q"),
	})
}

// Mine handles GET /api/items/mine.
func (h *ItemsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, store.ItemFilter{OwnerID: callerID(r)})
}

func (h *ItemsHandler) list(w http.ResponseWriter, r *http.Request, f store.ItemFilter) {
	items, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if fe := req.normalize(); len(fe) > 0 {
		jsonErrors(w, http.StatusBadRequest, fe)
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.CreateItem(r.Context(), h.DB, claims.UserID, req.Title, req.Description, req.Category, req.Condition)
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to create item")
		return
	}

	slog.Info("item created", "user", claims.Email, "item", item.ID, "title", item.Title)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}. Only the owner may edit.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if fe := req.normalize(); len(fe) > 0 {
		jsonErrors(w, http.StatusBadRequest, fe)
		return
	}

	if err := store.UpdateItem(r.Context(), h.DB, item.ID, req.Title, req.Description, req.Category, req.Condition); err != nil {
		slog.Error("failed to update item", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to update item")
		return
	}

	updated, err := store.GetItem(r.Context(), h.DB, item.ID)
	if err != nil || updated == nil {
		jsonError(w, http.StatusServiceUnavailable, "", "failed to load item")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/items/{id}. Only the owner may delete.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	h.remove(w, r, item)
}

// remove deletes an item, tells requesters whose pending requests were
// denied with it, and publishes the deletion.
func (h *ItemsHandler) remove(w http.ResponseWriter, r *http.Request, item *model.Item) {
	claims := GetClaims(r.Context())

	denied, err := store.DeleteItem(r.Context(), h.DB, item.ID)
	if errors.Is(err, store.ErrItemNotFound) {
		jsonError(w, http.StatusNotFound, "", "item not found")
		return
	}
	if errors.Is(err, store.ErrItemLent) {
		jsonError(w, http.StatusConflict, "", "item is currently lent out")
		return
	}
	if err != nil {
		slog.Error("failed to delete item", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to delete item")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	for _, req := range denied {
		msg := fmt.Sprintf("Your request for %q was denied because the item was removed.", item.Title)
		if err := h.Notify.Notify(ctx, req.RequesterID, msg, model.NotifyRequestDenied); err != nil {
			slog.Warn("notification failed", "recipient", req.RequesterID, "error", err)
		}
	}
	ev := events.New(events.ItemDeleted, item.ID, claims.UserID, time.Now(), map[string]string{
		"owner_id":       item.OwnerID,
		"title":          item.Title,
		"denied_pending": fmt.Sprint(len(denied)),
	})
	if err := h.Events.Publish(ctx, ev); err != nil {
		slog.Warn("event publish failed", "type", ev.Type, "subject", ev.Subject, "error", err)
	}

	slog.Info("item deleted", "user", claims.Email, "item", item.ID, "denied_pending", len(denied))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image (multipart field "image").
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	// Leave room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxImageBytes+64<<10)
	if err := r.ParseMultipartForm(h.MaxImageBytes); err != nil {
		jsonError(w, http.StatusRequestEntityTooLarge, "image", "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image", "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file, h.MaxImageBytes)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, "image", err.Error())
		return
	case errors.Is(err, imaging.ErrUnsupported):
		jsonError(w, http.StatusBadRequest, "image", err.Error())
		return
	case err != nil:
		slog.Error("failed to process image", "error", err)
		jsonError(w, http.StatusInternalServerError, "image", "failed to process image")
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, item.ID, photo.Full, photo.Thumb, photo.MIME); err != nil {
		slog.Error("failed to save image", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to save image")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/items/{id}/image. ?thumb=1 selects the thumbnail.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	thumb := r.URL.Query().Get("thumb")
	data, mime, err := store.GetItemImage(r.Context(), h.DB, r.PathValue("id"), thumb == "1" || thumb == "true")
	if err != nil {
		slog.Error("failed to get image", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "", "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// load fetches the item named by the path, writing 404 if it is gone.
func (h *ItemsHandler) load(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to get item")
		return nil, false
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "", "item not found")
		return nil, false
	}
	return item, true
}

// loadOwned is load plus an ownership check.
func (h *ItemsHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	item, ok := h.load(w, r)
	if !ok {
		return nil, false
	}
	if item.OwnerID != callerID(r) {
		jsonError(w, http.StatusForbidden, "", "only the owner can modify this item")
		return nil, false
	}
	return item, true
}
