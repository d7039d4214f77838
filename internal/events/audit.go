package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

// AuditConsumer archives every event under a subject prefix into audit_events.
type AuditConsumer struct {
	db     *sqlx.DB
	prefix string
}

// NewAuditConsumer returns a consumer writing to db. An empty prefix selects
// DefaultSubjectPrefix.
func NewAuditConsumer(db *sqlx.DB, prefix string) *AuditConsumer {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &AuditConsumer{db: db, prefix: prefix}
}

// Subject is the wildcard subject the consumer listens on.
func (c *AuditConsumer) Subject() string {
	return c.prefix + ".>"
}

// Run subscribes on conn and archives events until ctx is cancelled.
func (c *AuditConsumer) Run(ctx context.Context, conn *nats.Conn) error {
	sub, err := conn.Subscribe(c.Subject(), func(msg *nats.Msg) {
		if err := c.Handle(ctx, msg.Data); err != nil {
			slog.Error("archiving event", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.Subject(), err)
	}
	slog.Info("audit consumer subscribed", "subject", c.Subject())

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("draining subscription: %w", err)
	}
	return nil
}

// Handle decodes one message and stores it.
func (c *AuditConsumer) Handle(ctx context.Context, data []byte) error {
	ev, err := Decode(data)
	if err != nil {
		return err
	}

	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	return store.InsertAuditEvent(dbCtx, c.db, &model.AuditEvent{
		ID:         ev.ID,
		Type:       ev.Type,
		Subject:    ev.Subject,
		ActorID:    ev.ActorID,
		Payload:    string(data),
		OccurredAt: ev.OccurredAt,
	})
}
