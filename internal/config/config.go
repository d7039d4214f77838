// Package config loads server settings from defaults, an optional YAML file
// and command-line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "SHAREHUB_CONFIG"

// Config is the full server configuration.
type Config struct {
	Addr             string         `yaml:"addr"`
	Log              LogConfig      `yaml:"log"`
	Database         DatabaseConfig `yaml:"database"`
	Auth             AuthConfig     `yaml:"auth"`
	Admin            AdminConfig    `yaml:"admin"`
	Uploads          UploadsConfig  `yaml:"uploads"`
	Redis            RedisConfig    `yaml:"redis"`
	NATS             NATSConfig     `yaml:"nats"`
	ReconcileOnStart bool           `yaml:"reconcile_on_start"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	TokenTTL    time.Duration `yaml:"token_ttl"`
	EmailDomain string        `yaml:"email_domain"`
}

type AdminConfig struct {
	Email string `yaml:"email"`
}

type UploadsConfig struct {
	MaxImageBytes int64 `yaml:"max_image_bytes"`
}

// RedisConfig enables the cross-instance push relay when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig enables event publishing when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr: ":8080",
		Log:  LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "sharehub.sqlite3",
		},
		Auth:             AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		Admin:            AdminConfig{Email: "admin@sharehub.local"},
		Uploads:          UploadsConfig{MaxImageBytes: 10 << 20},
		NATS:             NATSConfig{SubjectPrefix: "sharehub.events"},
		ReconcileOnStart: true,
	}
}

// LoadFile reads path over cfg. Unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("database.driver must be sqlite or pgx, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Uploads.MaxImageBytes <= 0 {
		return errors.New("uploads.max_image_bytes must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// bindFlags registers every overridable setting on fs, pointing at cfg.
func bindFlags(fs *pflag.FlagSet, cfg *Config, configPath *string) {
	fs.StringVarP(configPath, "config", "c", os.Getenv(EnvConfigPath), "YAML config file (env "+EnvConfigPath+")")
	fs.StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "listen address")
	fs.StringVar(&cfg.Database.Driver, "db-driver", cfg.Database.Driver, "database driver: sqlite or pgx")
	fs.StringVarP(&cfg.Database.DSN, "db", "d", cfg.Database.DSN, "database path (sqlite) or connection string (pgx)")
	fs.StringVarP(&cfg.Log.Path, "log", "l", cfg.Log.Path, "log file path (default: stdout/stderr only)")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug, info, warn, error")
	fs.StringVarP(&cfg.Admin.Email, "admin-email", "u", cfg.Admin.Email, "admin email on first run")
	fs.StringVar(&cfg.Auth.EmailDomain, "email-domain", cfg.Auth.EmailDomain, "required registration email domain, e.g. cit.edu")
	fs.DurationVar(&cfg.Auth.TokenTTL, "token-ttl", cfg.Auth.TokenTTL, "login token lifetime")
	fs.Int64Var(&cfg.Uploads.MaxImageBytes, "max-image-bytes", cfg.Uploads.MaxImageBytes, "largest accepted item photo")
	fs.StringVar(&cfg.Redis.Addr, "redis-addr", cfg.Redis.Addr, "redis address for the push relay (optional)")
	fs.StringVar(&cfg.NATS.URL, "nats-url", cfg.NATS.URL, "NATS URL for lifecycle events (optional)")
	fs.StringVar(&cfg.NATS.SubjectPrefix, "nats-prefix", cfg.NATS.SubjectPrefix, "NATS subject prefix")
	fs.BoolVar(&cfg.ReconcileOnStart, "reconcile", cfg.ReconcileOnStart, "repair item availability on startup")
}

// Parse builds the configuration for program name from args. A config file
// named by --config or the environment is applied first, then any flags
// given explicitly. pflag.ErrHelp is returned when help was requested.
func Parse(name string, args []string) (Config, error) {
	var path string
	flagged := Default()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	bindFlags(fs, &flagged, &path)
	fs.Usage = func() {
		fmt.Fprintf(os.Stdout, "Usage: %s [flags]\n\nFlags:\n%s", name, fs.FlagUsages())
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg := Default()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	var ignored string
	final := pflag.NewFlagSet(name, pflag.ContinueOnError)
	bindFlags(final, &cfg, &ignored)

	var setErr error
	fs.Visit(func(f *pflag.Flag) {
		if setErr == nil && f.Name != "config" {
			setErr = final.Set(f.Name, f.Value.String())
		}
	})
	if setErr != nil {
		return Config{}, setErr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
