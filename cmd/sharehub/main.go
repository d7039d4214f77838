package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/campusshare/sharehub/internal/api"
	"github.com/campusshare/sharehub/internal/auth"
	"github.com/campusshare/sharehub/internal/config"
	"github.com/campusshare/sharehub/internal/db"
	"github.com/campusshare/sharehub/internal/events"
	"github.com/campusshare/sharehub/internal/lending"
	"github.com/campusshare/sharehub/internal/logging"
	"github.com/campusshare/sharehub/internal/notify"
	"github.com/campusshare/sharehub/internal/realtime"
	"github.com/campusshare/sharehub/internal/store"
)

func main() {
	cfg, err := config.Parse("sharehub", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
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
		slog.Error("server error", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer database.Close()
	if cfg.Database.MaxOpenConns > 0 && cfg.Database.Driver == db.DriverPostgres {
		database.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}

	// First run: create the admin account.
	password, err := ensureAdmin(ctx, database, cfg.Admin.Email)
	if err != nil {
		return err
	}
	if password != "" {
		where := cfg.Database.DSN
		if cfg.Database.Driver == db.DriverPostgres {
			where = "postgres"
		}
		printInitResult(where, cfg.Admin.Email, password)
	}
	slog.Info("database ready", "driver", cfg.Database.Driver)

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	if cfg.ReconcileOnStart {
		n, err := store.ReconcileAvailability(ctx, database)
		if err != nil {
			return fmt.Errorf("reconciling availability: %w", err)
		}
		if n > 0 {
			slog.Warn("repaired item availability", "items", n)
		}
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	var pusher realtime.Pusher = hub
	if cfg.Redis.Addr != "" {
		relay, closeRedis, err := startRelay(ctx, cfg.Redis, hub)
		if err != nil {
			return err
		}
		defer closeRedis()
		pusher = relay
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("sharehub"))
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer nc.Drain()
		publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix)
		slog.Info("publishing events", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	dispatcher := notify.NewDispatcher(database, pusher)
	manager := lending.New(lending.Config{
		DB:       database,
		Notifier: dispatcher,
		Events:   publisher,
	})

	router := api.NewRouter(api.Config{
		DB:            database,
		Signer:        auth.NewSigner(jwtSecret, cfg.Auth.TokenTTL),
		Lending:       manager,
		Notify:        dispatcher,
		Hub:           hub,
		Pusher:        pusher,
		Events:        publisher,
		EmailDomain:   cfg.Auth.EmailDomain,
		MaxImageBytes: cfg.Uploads.MaxImageBytes,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		cancel()
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}

// startRelay connects to redis and forwards relayed pushes into hub until
// ctx is cancelled.
func startRelay(ctx context.Context, rc config.RedisConfig, hub *realtime.Hub) (*realtime.RedisRelay, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	relay := realtime.NewRedisRelay(client, hub)
	go func() {
		if err := relay.Run(ctx); err != nil {
			slog.Error("redis relay stopped", "error", err)
		}
	}()

	slog.Info("redis relay enabled", "addr", rc.Addr)
	return relay, func() { client.Close() }, nil
}
