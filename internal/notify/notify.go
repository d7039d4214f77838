// Package notify appends per-recipient notifications and serves the
// recent-notifications feed.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/realtime"
	"github.com/campusshare/sharehub/internal/store"
	"github.com/jmoiron/sqlx"
)

// Feed size limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Dispatcher writes notifications and pushes them to live sessions.
type Dispatcher struct {
	db     *sqlx.DB
	pusher realtime.Pusher
}

// NewDispatcher returns a dispatcher. pusher may be nil.
func NewDispatcher(db *sqlx.DB, pusher realtime.Pusher) *Dispatcher {
	return &Dispatcher{db: db, pusher: pusher}
}

// Notify appends a notification for recipientID. Live delivery is
// best-effort and never fails the call.
func (d *Dispatcher) Notify(ctx context.Context, recipientID, message, typ string) error {
	if recipientID == "" {
		return errors.New("notification recipient is required")
	}
	if message == "" {
		return errors.New("notification message is required")
	}

	n, err := store.InsertNotification(ctx, d.db, recipientID, message, typ)
	if err != nil {
		return err
	}

	d.push(ctx, recipientID, "notification", n)
	return nil
}

// Recent returns up to limit notifications for recipientID, most recent
// first, with the recipient's total unread count. limit is clamped to
// [1, MaxLimit]; zero or negative selects DefaultLimit.
func (d *Dispatcher) Recent(ctx context.Context, recipientID string, limit int) (*model.Feed, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	list, err := store.ListNotifications(ctx, d.db, recipientID, limit)
	if err != nil {
		return nil, err
	}
	unread, err := store.CountUnread(ctx, d.db, recipientID)
	if err != nil {
		return nil, err
	}
	return &model.Feed{Notifications: list, Unread: unread}, nil
}

// MarkAllRead marks every notification of recipientID as read and returns
// how many changed.
func (d *Dispatcher) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	n, err := store.MarkNotificationsRead(ctx, d.db, recipientID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		d.push(ctx, recipientID, "notifications_read", map[string]int{"unread": 0})
	}
	return n, nil
}

// MarkRead marks one notification read. It reports false if the
// notification does not exist or belongs to someone else.
func (d *Dispatcher) MarkRead(ctx context.Context, recipientID, id string) (bool, error) {
	n, err := store.MarkNotificationRead(ctx, d.db, recipientID, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Dispatcher) push(ctx context.Context, userID, typ string, data any) {
	if d.pusher == nil {
		return
	}
	payload, err := realtime.Encode(typ, data)
	if err != nil {
		slog.Warn("encoding push", "type", typ, "error", err)
		return
	}
	if err := d.pusher.Push(ctx, userID, payload); err != nil {
		slog.Warn("push failed", "user", userID, "type", typ, "error", err)
	}
}
