package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sharehub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Parse("sharehub", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
}

func TestParseFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	path := writeConfig(t, `
addr: ":9000"
log:
  level: debug
database:
  driver: pgx
  dsn: postgres://localhost/sharehub
  max_open_conns: 10
auth:
  token_ttl: 12h
  email_domain: cit.edu
redis:
  addr: localhost:6379
nats:
  url: nats://localhost:4222
reconcile_on_start: false
`)

	cfg, err := Parse("sharehub", []string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "cit.edu", cfg.Auth.EmailDomain)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "sharehub.events", cfg.NATS.SubjectPrefix, "unset keys keep defaults")
	assert.False(t, cfg.ReconcileOnStart)
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "addr: \":9000\"\nauth:\n  token_ttl: 12h\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Parse("sharehub", []string{"-a", ":7000", "--token-ttl", "1h", "-d", "other.sqlite3"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "other.sqlite3", cfg.Database.DSN)
}

func TestParseFileWinsOverUnsetFlags(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	path := writeConfig(t, "addr: \":9000\"\n")

	cfg, err := Parse("sharehub", []string{"-c", path, "--log-level", "warn"})
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestParseErrors(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	tests := []struct {
		name string
		body string
		args []string
	}{
		{"unknown key", "adress: \":1\"\n", nil},
		{"bad driver", "database:\n  driver: mysql\n", nil},
		{"bad level", "log:\n  level: loud\n", nil},
		{"zero ttl", "", []string{"--token-ttl", "0s"}},
		{"stray argument", "", []string{"serve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.body != "" {
				args = append([]string{"-c", writeConfig(t, tt.body)}, args...)
			}
			_, err := Parse("sharehub", args)
			assert.Error(t, err)
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Parse("sharehub", nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseHelp(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	_, err := Parse("sharehub", []string{"--help"})
	assert.True(t, errors.Is(err, pflag.ErrHelp))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
