package store

import (
	"context"
	"fmt"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// InsertNotification appends a notification for recipientID.
func InsertNotification(ctx context.Context, db sqlx.ExtContext, recipientID, message, typ string) (*model.Notification, error) {
	n := &model.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Message:     message,
		Type:        typ,
		CreatedAt:   now(),
	}
	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO notifications (id, recipient_id, message, type, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		n.ID, n.RecipientID, n.Message, n.Type, false, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns up to limit notifications for recipientID, most
// recent first.
func ListNotifications(ctx context.Context, db sqlx.ExtContext, recipientID string, limit int) ([]model.Notification, error) {
	notifications := []model.Notification{}
	err := sqlx.SelectContext(ctx, db, &notifications, db.Rebind(
		`SELECT id, recipient_id, message, type, is_read, created_at
		 FROM notifications WHERE recipient_id = ?
		 ORDER BY created_at DESC LIMIT ?`),
		recipientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return notifications, nil
}

// CountUnread returns the number of unread notifications for recipientID.
func CountUnread(ctx context.Context, db sqlx.ExtContext, recipientID string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, db, &count, db.Rebind(
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = FALSE`),
		recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationsRead marks every unread notification of recipientID as read.
func MarkNotificationsRead(ctx context.Context, db sqlx.ExtContext, recipientID string) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE notifications SET is_read = ? WHERE recipient_id = ? AND is_read = FALSE`),
		true, recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return affected(res, "marking notifications read")
}

// MarkNotificationRead marks one notification read if it belongs to recipientID.
func MarkNotificationRead(ctx context.Context, db sqlx.ExtContext, recipientID, id string) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE notifications SET is_read = ? WHERE id = ? AND recipient_id = ?`),
		true, id, recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notification read: %w", err)
	}
	return affected(res, "marking notification read")
}
