// Command sharehub-audit archives borrow lifecycle events from NATS into the
// audit_events table, where admins can browse them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/pflag"

	"github.com/campusshare/sharehub/internal/config"
	"github.com/campusshare/sharehub/internal/db"
	"github.com/campusshare/sharehub/internal/events"
	"github.com/campusshare/sharehub/internal/logging"
)

func main() {
	cfg, err := config.Parse("sharehub-audit", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.NATS.URL == "" {
		fmt.Fprintln(os.Stderr, "error: --nats-url (or nats.url) is required")
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	closeLog, err := logging.Setup(cfg.Log.Path, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("audit consumer error", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("sharehub-audit"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer nc.Close()

	consumer := events.NewAuditConsumer(database, cfg.NATS.SubjectPrefix)
	slog.Info("audit consumer starting", "url", cfg.NATS.URL, "subject", consumer.Subject())

	if err := consumer.Run(ctx, nc); err != nil {
		return err
	}

	slog.Info("audit consumer stopped")
	return nil
}
