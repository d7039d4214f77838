package store

import (
	"context"
	"fmt"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/jmoiron/sqlx"
)

// InsertAuditEvent archives an event. Redelivered events are ignored.
func InsertAuditEvent(ctx context.Context, db sqlx.ExtContext, ev *model.AuditEvent) error {
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = now()
	}
	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO audit_events (id, type, subject, actor_id, payload, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`),
		ev.ID, ev.Type, ev.Subject, ev.ActorID, ev.Payload, ev.OccurredAt.UTC(), ev.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns up to limit archived events, newest first,
// optionally filtered by type.
func ListAuditEvents(ctx context.Context, db sqlx.ExtContext, typ string, limit int) ([]model.AuditEvent, error) {
	query := `SELECT id, type, subject, actor_id, payload, occurred_at, recorded_at FROM audit_events`
	var args []any
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	events := []model.AuditEvent{}
	if err := sqlx.SelectContext(ctx, db, &events, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	return events, nil
}
