// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wanderdesk Contributors

// Package config loads wanderdesk settings. Precedence, lowest first: flag
// defaults, the YAML config file, DATABASE_URL, flags set on the command line.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/wanderdesk/wanderdesk/internal/audit"
	"github.com/wanderdesk/wanderdesk/internal/auth"
	"github.com/wanderdesk/wanderdesk/internal/logging"
	"github.com/wanderdesk/wanderdesk/internal/xdg"
)

// DatabaseURLEnv names the environment fallback for database.url.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the full settings tree.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Audit    AuditConfig    `koanf:"audit"`
	Notify   NotifyConfig   `koanf:"notify"`
}

type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

type MetricsConfig struct {
	// Addr is the observability listen address. Empty disables it.
	Addr string `koanf:"addr"`
}

type DatabaseConfig struct {
	URL             string `koanf:"url"`
	ConnectAttempts uint64 `koanf:"connect_attempts"`
	AutoMigrate     bool   `koanf:"auto_migrate"`
}

// AuthConfig mirrors the auth package policies.
type AuthConfig struct {
	MaxAttempts           int           `koanf:"max_attempts"`
	LockoutDuration       time.Duration `koanf:"lockout_duration"`
	LockoutEnabled        bool          `koanf:"lockout_enabled"`
	SessionTimeout        time.Duration `koanf:"session_timeout"`
	SessionTimeoutEnabled bool          `koanf:"session_timeout_enabled"`
	ResetTokenTTL         time.Duration `koanf:"reset_token_ttl"`
	MinPasswordLength     int           `koanf:"min_password_length"`
	SweepInterval         time.Duration `koanf:"sweep_interval"`
}

type AuditConfig struct {
	Mode      string        `koanf:"mode"`
	WALPath   string        `koanf:"wal_path"`
	Retention time.Duration `koanf:"retention"`
}

type NotifyConfig struct {
	// Outbox is a file that receives rendered notices; "-" means stdout.
	Outbox  string `koanf:"outbox"`
	Retries uint64 `koanf:"retries"`
}

// flagKeys maps command-line flags to config keys. Flags missing here are
// not configuration (for example --config itself).
var flagKeys = map[string]string{
	"log-format":              "log.format",
	"log-level":               "log.level",
	"metrics-addr":            "metrics.addr",
	"database-url":            "database.url",
	"connect-attempts":        "database.connect_attempts",
	"auto-migrate":            "database.auto_migrate",
	"max-attempts":            "auth.max_attempts",
	"lockout-duration":        "auth.lockout_duration",
	"lockout":                 "auth.lockout_enabled",
	"session-timeout":         "auth.session_timeout",
	"session-timeout-enabled": "auth.session_timeout_enabled",
	"reset-token-ttl":         "auth.reset_token_ttl",
	"min-password-length":     "auth.min_password_length",
	"sweep-interval":          "auth.sweep_interval",
	"audit-mode":              "audit.mode",
	"audit-wal":               "audit.wal_path",
	"audit-retention":         "audit.retention",
	"outbox":                  "notify.outbox",
	"notify-retries":          "notify.retries",
}

// RegisterFlags adds every setting to flags with its default.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	flags.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	flags.Uint64("connect-attempts", 5, "database ping retries at startup")
	flags.Bool("auto-migrate", true, "apply pending migrations on startup")
	flags.Int("max-attempts", auth.DefaultMaxAttempts, "consecutive failures that lock an account")
	flags.Duration("lockout-duration", auth.DefaultLockoutDuration, "how long a lockout lasts")
	flags.Bool("lockout", true, "enable account lockout")
	flags.Duration("session-timeout", auth.DefaultSessionTimeout, "session inactivity timeout")
	flags.Bool("session-timeout-enabled", true, "expire idle sessions")
	flags.Duration("reset-token-ttl", auth.DefaultResetTokenTTL, "password reset token lifetime (0 = until used)")
	flags.Int("min-password-length", auth.DefaultMinPasswordLength, "minimum password length")
	flags.Duration("sweep-interval", time.Minute, "janitor sweep interval (0 = disabled)")
	flags.String("audit-mode", string(audit.ModeSecurity), "audit mode (security or all)")
	flags.String("audit-wal", "", "audit write-ahead log path (default: XDG state dir)")
	flags.Duration("audit-retention", audit.DefaultRetentionConfig().RetainFor, "how long stored audit events are kept (0 = forever)")
	flags.String("outbox", "-", "file receiving rendered notices (- = stdout)")
	flags.Uint64("notify-retries", 3, "notice redelivery attempts")
}

// Load builds a Config from flags and the YAML file at path. An empty path
// uses the default file under the XDG config dir when it exists; an
// explicit path must exist.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		def, err := xdg.ConfigFile()
		if err == nil {
			path = def
		}
	}
	if path != "" {
		err := k.Load(file.Provider(path), yaml.Parser())
		switch {
		case err == nil:
		case !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if url := os.Getenv(DatabaseURLEnv); url != "" && !k.Exists("database.url") {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	// With k passed in, unchanged flags only fill keys the file left unset.
	provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

// Validate checks values that flags alone cannot constrain.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "unknown level %q", c.Log.Level)
	}
	if _, err := audit.ParseMode(c.Audit.Mode); err != nil {
		return invalid("audit.mode", "must be 'security' or 'all', got %q", c.Audit.Mode)
	}
	if c.Auth.MaxAttempts < 1 {
		return invalid("auth.max_attempts", "must be at least 1, got %d", c.Auth.MaxAttempts)
	}
	if c.Auth.LockoutDuration <= 0 {
		return invalid("auth.lockout_duration", "must be positive, got %s", c.Auth.LockoutDuration)
	}
	if c.Auth.SessionTimeout <= 0 {
		return invalid("auth.session_timeout", "must be positive, got %s", c.Auth.SessionTimeout)
	}
	if c.Auth.ResetTokenTTL < 0 {
		return invalid("auth.reset_token_ttl", "cannot be negative, got %s", c.Auth.ResetTokenTTL)
	}
	if c.Auth.MinPasswordLength < 1 {
		return invalid("auth.min_password_length", "must be at least 1, got %d", c.Auth.MinPasswordLength)
	}
	if c.Auth.SweepInterval < 0 {
		return invalid("auth.sweep_interval", "cannot be negative, got %s", c.Auth.SweepInterval)
	}
	if c.Audit.Retention < 0 {
		return invalid("audit.retention", "cannot be negative, got %s", c.Audit.Retention)
	}
	return nil
}

// RequireDatabase reports a missing database URL.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "is required (flag --database-url, config file, or $%s)", DatabaseURLEnv)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}

// AuthOptions converts the auth section into service options.
func (c *Config) AuthOptions() []auth.Option {
	return []auth.Option{
		auth.WithLockoutConfig(auth.LockoutConfig{
			MaxAttempts: c.Auth.MaxAttempts,
			Duration:    c.Auth.LockoutDuration,
			Enabled:     c.Auth.LockoutEnabled,
		}),
		auth.WithSessionConfig(auth.SessionConfig{
			Timeout:        c.Auth.SessionTimeout,
			TimeoutEnabled: c.Auth.SessionTimeoutEnabled,
		}),
		auth.WithResetConfig(auth.ResetConfig{TTL: c.Auth.ResetTokenTTL}),
		auth.WithPasswordPolicy(auth.PasswordPolicy{MinLength: c.Auth.MinPasswordLength}),
	}
}

// LogLevel returns the parsed log level. Call Validate first.
func (c *Config) LogLevel() slog.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}
