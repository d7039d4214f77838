package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/notify"
	"github.com/campusshare/sharehub/internal/realtime"
	"github.com/campusshare/sharehub/internal/store"
)

const maxMessageLength = 2000

// ChatHandler handles item conversations between borrowers and owners.
type ChatHandler struct {
	DB     *sqlx.DB
	Notify *notify.Dispatcher
	Pusher realtime.Pusher
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// Start handles POST /api/chat/start/{item_id}.
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("item_id"))
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "", "item not found")
		return
	}

	conv, created, err := store.StartConversation(r.Context(), h.DB, item, callerID(r))
	if errors.Is(err, store.ErrSelfConversation) {
		jsonError(w, http.StatusBadRequest, "item_id", err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to start conversation", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to start conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	jsonResponse(w, status, conv)
}

// List handles GET /api/chat.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	heads, err := store.ListChatHeads(r.Context(), h.DB, callerID(r))
	if err != nil {
		slog.Error("failed to list conversations", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list conversations")
		return
	}
	if heads == nil {
		heads = []model.ChatHead{}
	}

	ids := make([]string, 0, len(heads))
	for _, head := range heads {
		if head.OtherID != "" {
			ids = append(ids, head.OtherID)
		}
	}
	contacts, err := store.ListContacts(r.Context(), h.DB, ids)
	if err != nil {
		slog.Error("failed to load contacts", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list conversations")
		return
	}
	for i := range heads {
		heads[i].OtherContact = contacts[heads[i].OtherID]
	}

	jsonResponse(w, http.StatusOK, heads)
}

// Messages handles GET /api/chat/{id}/messages and marks incoming
// messages as read.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conv, _, ok := h.join(w, r)
	if !ok {
		return
	}

	if _, err := store.MarkMessagesRead(r.Context(), h.DB, conv.ID, callerID(r)); err != nil {
		slog.Warn("failed to mark messages read", "conversation", conv.ID, "error", err)
	}

	messages, err := store.ListMessages(r.Context(), h.DB, conv.ID)
	if err != nil {
		slog.Error("failed to list messages", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to list messages")
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     messages,
	})
}

// Send handles POST /api/chat/{id}/messages. The other participants get the
// message pushed live and a notification.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	conv, participants, ok := h.join(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	content := strings.TrimSpace(req.Content)
	switch {
	case content == "":
		jsonError(w, http.StatusBadRequest, "content", "message cannot be empty")
		return
	case utf8.RuneCountInString(content) > maxMessageLength:
		jsonError(w, http.StatusBadRequest, "content", fmt.Sprintf("message must be at most %d characters", maxMessageLength))
		return
	}

	sender := currentUser(r.Context())
	msg, err := store.InsertMessage(r.Context(), h.DB, conv.ID, sender.ID, content)
	if err != nil {
		slog.Error("failed to send message", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to send message")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	payload, err := realtime.Encode("chat_message", msg)
	if err != nil {
		slog.Warn("encoding push", "type", "chat_message", "error", err)
	}
	text := fmt.Sprintf("New message from %s about %q.", sender.DisplayName(), conv.ItemTitle)
	for _, id := range participants {
		if id == sender.ID {
			continue
		}
		if h.Pusher != nil && payload != nil {
			if err := h.Pusher.Push(ctx, id, payload); err != nil {
				slog.Warn("push failed", "user", id, "type", "chat_message", "error", err)
			}
		}
		if err := h.Notify.Notify(ctx, id, text, model.NotifyChatMessage); err != nil {
			slog.Warn("notification failed", "recipient", id, "error", err)
		}
	}

	jsonResponse(w, http.StatusCreated, msg)
}

// join loads the conversation in the path and checks that the caller
// takes part in it. Non-participants get 404.
func (h *ChatHandler) join(w http.ResponseWriter, r *http.Request) (*model.Conversation, []string, bool) {
	conv, err := store.GetConversation(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get conversation", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to get conversation")
		return nil, nil, false
	}

	var participants []string
	if conv != nil {
		participants, err = store.ListParticipants(r.Context(), h.DB, conv.ID)
		if err != nil {
			slog.Error("failed to list participants", "error", err)
			jsonError(w, http.StatusServiceUnavailable, "", "failed to get conversation")
			return nil, nil, false
		}
	}
	if conv == nil || !slices.Contains(participants, callerID(r)) {
		jsonError(w, http.StatusNotFound, "", "conversation not found")
		return nil, nil, false
	}
	return conv, participants, true
}
