package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	EnvServerHost              = "CREDITDESK_SERVER_HOST"
	EnvServerPort              = "CREDITDESK_SERVER_PORT"
	EnvServerReadTimeout       = "CREDITDESK_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "CREDITDESK_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "CREDITDESK_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "CREDITDESK_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "CREDITDESK_SERVER_SHUTDOWN_TIMEOUT"
	EnvServerLogLevel          = "CREDITDESK_SERVER_LOG_LEVEL"
	EnvServerLogFormat         = "CREDITDESK_SERVER_LOG_FORMAT"
)

var logFormats = []string{"text", "json"}

// ServerConfig holds HTTP listener and logging parameters. Review event
// sockets manage their own deadlines once upgraded, so the timeouts here
// bound ordinary requests.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
	LogLevel          string `toml:"log_level"`
	LogFormat         string `toml:"log_format"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return mustDuration(c.ReadTimeout)
}

func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return mustDuration(c.ReadHeaderTimeout)
}

func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return mustDuration(c.WriteTimeout)
}

func (c *ServerConfig) IdleTimeoutDuration() time.Duration {
	return mustDuration(c.IdleTimeout)
}

func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(c.ShutdownTimeout)
}

// SlogLevel returns LogLevel as a slog.Level, defaulting to info.
func (c *ServerConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogHandler builds the slog handler selected by LogFormat.
func (c *ServerConfig) LogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for dst, src := range map[*string]string{
		&c.Host:              overlay.Host,
		&c.ReadTimeout:       overlay.ReadTimeout,
		&c.ReadHeaderTimeout: overlay.ReadHeaderTimeout,
		&c.WriteTimeout:      overlay.WriteTimeout,
		&c.IdleTimeout:       overlay.IdleTimeout,
		&c.ShutdownTimeout:   overlay.ShutdownTimeout,
		&c.LogLevel:          overlay.LogLevel,
		&c.LogFormat:         overlay.LogFormat,
	} {
		if src != "" {
			*dst = src
		}
	}
}

func (c *ServerConfig) loadDefaults() {
	defaults := []struct {
		dst *string
		val string
	}{
		{&c.Host, "0.0.0.0"},
		{&c.ReadTimeout, "1m"},
		{&c.ReadHeaderTimeout, "10s"},
		{&c.WriteTimeout, "2m"},
		{&c.IdleTimeout, "2m"},
		{&c.ShutdownTimeout, "30s"},
		{&c.LogLevel, "info"},
		{&c.LogFormat, "text"},
	}
	for _, d := range defaults {
		if *d.dst == "" {
			*d.dst = d.val
		}
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

func (c *ServerConfig) loadEnv() {
	for dst, name := range map[*string]string{
		&c.Host:              EnvServerHost,
		&c.ReadTimeout:       EnvServerReadTimeout,
		&c.ReadHeaderTimeout: EnvServerReadHeaderTimeout,
		&c.WriteTimeout:      EnvServerWriteTimeout,
		&c.IdleTimeout:       EnvServerIdleTimeout,
		&c.ShutdownTimeout:   EnvServerShutdownTimeout,
		&c.LogLevel:          EnvServerLogLevel,
		&c.LogFormat:         EnvServerLogFormat,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for name, v := range map[string]string{
		"read_timeout":        c.ReadTimeout,
		"read_header_timeout": c.ReadHeaderTimeout,
		"write_timeout":       c.WriteTimeout,
		"idle_timeout":        c.IdleTimeout,
		"shutdown_timeout":    c.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	if !slices.Contains(logFormats, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("invalid log_format: %q", c.LogFormat)
	}
	return nil
}

// mustDuration parses a value validate has already accepted.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
