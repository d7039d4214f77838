package api

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/campusshare/sharehub/internal/auth"
	"github.com/campusshare/sharehub/internal/events"
	"github.com/campusshare/sharehub/internal/lending"
	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/notify"
	"github.com/campusshare/sharehub/internal/realtime"
)

// DefaultMaxImageBytes is used when Config.MaxImageBytes is unset.
const DefaultMaxImageBytes = 10 << 20

// Config holds the router's dependencies. DB, Signer, Lending and Notify
// are required. Hub enables /api/ws; Pusher defaults to Hub.
type Config struct {
	DB            *sqlx.DB
	Signer        *auth.Signer
	Lending       *lending.Manager
	Notify        *notify.Dispatcher
	Hub           *realtime.Hub
	Pusher        realtime.Pusher
	Events        events.Publisher
	EmailDomain   string
	MaxImageBytes int64
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.Pusher == nil && cfg.Hub != nil {
		cfg.Pusher = cfg.Hub
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: cfg.DB, Signer: cfg.Signer, EmailDomain: cfg.EmailDomain}
	itemsHandler := &ItemsHandler{DB: cfg.DB, Notify: cfg.Notify, Events: cfg.Events, MaxImageBytes: cfg.MaxImageBytes}
	requestsHandler := &RequestsHandler{DB: cfg.DB, Lending: cfg.Lending}
	notificationsHandler := &NotificationsHandler{Notify: cfg.Notify}
	chatHandler := &ChatHandler{DB: cfg.DB, Notify: cfg.Notify, Pusher: cfg.Pusher}
	reportsHandler := &ReportsHandler{DB: cfg.DB, Notify: cfg.Notify}
	settingsHandler := &SettingsHandler{DB: cfg.DB}
	adminHandler := &AdminHandler{DB: cfg.DB, Items: itemsHandler}

	authMW := AuthMiddleware(cfg.Signer, cfg.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("GET /healthz", healthz(cfg.DB))
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Account.
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("GET /api/me", authed(authHandler.Me))
	mux.Handle("PUT /api/me", authed(authHandler.UpdateMe))
	mux.Handle("GET /api/me/settings", authed(settingsHandler.Get))
	mux.Handle("PUT /api/me/settings", authed(settingsHandler.Update))

	// Items.
	mux.Handle("GET /api/items", authed(itemsHandler.Browse))
	mux.Handle("GET /api/items/mine", authed(itemsHandler.Mine))
	mux.Handle("POST /api/items", authed(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", authed(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", authed(itemsHandler.Delete))
	mux.Handle("PUT /api/items/{id}/image", authed(itemsHandler.UploadImage))
	mux.Handle("GET /api/items/{id}/image", authed(itemsHandler.GetImage))

	// Borrow requests.
	mux.Handle("POST /api/requests", authed(requestsHandler.Create))
	mux.Handle("POST /api/requests/{id}/respond", authed(requestsHandler.Respond))
	mux.Handle("POST /api/requests/{id}/return", authed(requestsHandler.Return))
	mux.Handle("GET /api/requests/incoming", authed(requestsHandler.Incoming))
	mux.Handle("GET /api/requests/outgoing", authed(requestsHandler.Outgoing))
	mux.Handle("GET /api/requests/borrowed", authed(requestsHandler.Borrowed))

	// Notifications.
	mux.Handle("GET /api/notifications", authed(notificationsHandler.List))
	mux.Handle("POST /api/notifications/read", authed(notificationsHandler.MarkAllRead))
	mux.Handle("POST /api/notifications/{id}/read", authed(notificationsHandler.MarkRead))

	// Chat.
	mux.Handle("POST /api/chat/start/{item_id}", authed(chatHandler.Start))
	mux.Handle("GET /api/chat", authed(chatHandler.List))
	mux.Handle("GET /api/chat/{id}/messages", authed(chatHandler.Messages))
	mux.Handle("POST /api/chat/{id}/messages", authed(chatHandler.Send))

	// Reports.
	mux.Handle("POST /api/reports", authed(reportsHandler.Create))
	mux.Handle("GET /api/admin/reports", admin(reportsHandler.List))
	mux.Handle("PUT /api/admin/reports/{id}", admin(reportsHandler.UpdateStatus))

	// Administration.
	mux.Handle("GET /api/admin/users", admin(adminHandler.ListUsers))
	mux.Handle("PUT /api/admin/users/{id}/role", admin(adminHandler.UpdateRole))
	mux.Handle("PUT /api/admin/users/{id}/block", admin(adminHandler.Block))
	mux.Handle("DELETE /api/admin/users/{id}", admin(adminHandler.DeleteUser))
	mux.Handle("GET /api/admin/items", admin(adminHandler.ListItems))
	mux.Handle("DELETE /api/admin/items/{id}", admin(adminHandler.DeleteItem))
	mux.Handle("POST /api/admin/reconcile", admin(adminHandler.Reconcile))
	mux.Handle("GET /api/admin/audit", admin(adminHandler.Audit))

	// Live push.
	if cfg.Hub != nil {
		mux.Handle("GET /api/ws", QueryToken(authMW(realtime.NewHandler(cfg.Hub, callerID))))
	}

	return mux
}

// healthz reports whether the database is reachable.
func healthz(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "", "database unreachable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
