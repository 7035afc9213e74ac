package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/creditdesk/internal/auth"
	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/pkg/database"
	"github.com/JaimeStill/creditdesk/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvCreditdeskEnv             = "CREDITDESK_ENV"
	EnvCreditdeskShutdownTimeout = "CREDITDESK_SHUTDOWN_TIMEOUT"
	EnvCreditdeskVersion         = "CREDITDESK_VERSION"
)

var backendEnv = &backend.Env{
	BaseURL:       "CREDITDESK_BACKEND_URL",
	Timeout:       "CREDITDESK_BACKEND_TIMEOUT",
	MaxUploadSize: "CREDITDESK_BACKEND_MAX_UPLOAD_SIZE",
}

var authEnv = &auth.Env{
	Mode:           "CREDITDESK_AUTH_MODE",
	Username:       "CREDITDESK_AUTH_USERNAME",
	PasswordHash:   "CREDITDESK_AUTH_PASSWORD_HASH",
	DisplayName:    "CREDITDESK_AUTH_DISPLAY_NAME",
	JWTSecret:      "CREDITDESK_AUTH_JWT_SECRET",
	JWTIssuer:      "CREDITDESK_AUTH_JWT_ISSUER",
	TokenTTL:       "CREDITDESK_AUTH_TOKEN_TTL",
	OIDCIssuer:     "CREDITDESK_AUTH_OIDC_ISSUER",
	OIDCClientID:   "CREDITDESK_AUTH_OIDC_CLIENT_ID",
	CookieSecure:   "CREDITDESK_AUTH_COOKIE_SECURE",
	LoginPerMinute: "CREDITDESK_AUTH_LOGIN_PER_MINUTE",
	LoginBurst:     "CREDITDESK_AUTH_LOGIN_BURST",
}

var databaseEnv = &database.Env{
	DSN:             "CREDITDESK_DB_DSN",
	Host:            "CREDITDESK_DB_HOST",
	Port:            "CREDITDESK_DB_PORT",
	Name:            "CREDITDESK_DB_NAME",
	User:            "CREDITDESK_DB_USER",
	Password:        "CREDITDESK_DB_PASSWORD",
	SSLMode:         "CREDITDESK_DB_SSL_MODE",
	MaxOpenConns:    "CREDITDESK_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "CREDITDESK_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "CREDITDESK_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "CREDITDESK_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Enabled:          "CREDITDESK_STORAGE_ENABLED",
	ContainerName:    "CREDITDESK_STORAGE_CONTAINER_NAME",
	ConnectionString: "CREDITDESK_STORAGE_CONNECTION_STRING",
	AccountURL:       "CREDITDESK_STORAGE_ACCOUNT_URL",
	MaxListSize:      "CREDITDESK_STORAGE_MAX_LIST_SIZE",
}

// Config is the root configuration for the creditdesk service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	API             APIConfig       `toml:"api"`
	Backend         backend.Config  `toml:"backend"`
	Review          ReviewConfig    `toml:"review"`
	Auth            auth.Config     `toml:"auth"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the CREDITDESK_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvCreditdeskEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. Without a config.toml, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.API.Merge(&overlay.API)
	c.Backend.Merge(&overlay.Backend)
	c.Review.Merge(&overlay.Review)
	c.Auth.Merge(&overlay.Auth)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"api", c.API.Finalize},
		{"backend", func() error { return c.Backend.Finalize(backendEnv) }},
		{"review", c.Review.Finalize},
		{"auth", func() error { return c.Auth.Finalize(authEnv) }},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
	}

	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvCreditdeskShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvCreditdeskVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvCreditdeskEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
