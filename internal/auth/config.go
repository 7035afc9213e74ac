package auth

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Authentication modes.
const (
	ModeNone  = "none"
	ModeLocal = "local"
	ModeOIDC  = "oidc"
)

const minSecretLength = 32

// Config holds reviewer authentication settings.
type Config struct {
	Mode           string `toml:"mode"`
	Username       string `toml:"username"`
	PasswordHash   string `toml:"password_hash"`
	DisplayName    string `toml:"display_name"`
	JWTSecret      string `toml:"jwt_secret"`
	JWTIssuer      string `toml:"jwt_issuer"`
	TokenTTL       string `toml:"token_ttl"`
	OIDCIssuer     string `toml:"oidc_issuer"`
	OIDCClientID   string `toml:"oidc_client_id"`
	CookieSecure   bool   `toml:"cookie_secure"`
	LoginPerMinute int    `toml:"login_per_minute"`
	LoginBurst     int    `toml:"login_burst"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Mode           string
	Username       string
	PasswordHash   string
	DisplayName    string
	JWTSecret      string
	JWTIssuer      string
	TokenTTL       string
	OIDCIssuer     string
	OIDCClientID   string
	CookieSecure   string
	LoginPerMinute string
	LoginBurst     string
}

// TokenTTLDuration returns TokenTTL as a time.Duration.
func (c *Config) TokenTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TokenTTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. CookieSecure can only be
// switched on by an overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Mode != "" {
		c.Mode = overlay.Mode
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
	if overlay.PasswordHash != "" {
		c.PasswordHash = overlay.PasswordHash
	}
	if overlay.DisplayName != "" {
		c.DisplayName = overlay.DisplayName
	}
	if overlay.JWTSecret != "" {
		c.JWTSecret = overlay.JWTSecret
	}
	if overlay.JWTIssuer != "" {
		c.JWTIssuer = overlay.JWTIssuer
	}
	if overlay.TokenTTL != "" {
		c.TokenTTL = overlay.TokenTTL
	}
	if overlay.OIDCIssuer != "" {
		c.OIDCIssuer = overlay.OIDCIssuer
	}
	if overlay.OIDCClientID != "" {
		c.OIDCClientID = overlay.OIDCClientID
	}
	if overlay.CookieSecure {
		c.CookieSecure = true
	}
	if overlay.LoginPerMinute != 0 {
		c.LoginPerMinute = overlay.LoginPerMinute
	}
	if overlay.LoginBurst != 0 {
		c.LoginBurst = overlay.LoginBurst
	}
}

func (c *Config) loadDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLocal
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "creditdesk"
	}
	if c.TokenTTL == "" {
		c.TokenTTL = "8h"
	}
	if c.LoginPerMinute == 0 {
		c.LoginPerMinute = 10
	}
	if c.LoginBurst == 0 {
		c.LoginBurst = 5
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.Mode, &c.Mode)
	set(env.Username, &c.Username)
	set(env.PasswordHash, &c.PasswordHash)
	set(env.DisplayName, &c.DisplayName)
	set(env.JWTSecret, &c.JWTSecret)
	set(env.JWTIssuer, &c.JWTIssuer)
	set(env.TokenTTL, &c.TokenTTL)
	set(env.OIDCIssuer, &c.OIDCIssuer)
	set(env.OIDCClientID, &c.OIDCClientID)

	if env.CookieSecure != "" {
		if v := os.Getenv(env.CookieSecure); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.CookieSecure = b
			}
		}
	}
	if env.LoginPerMinute != "" {
		if v := os.Getenv(env.LoginPerMinute); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.LoginPerMinute = n
			}
		}
	}
	if env.LoginBurst != "" {
		if v := os.Getenv(env.LoginBurst); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.LoginBurst = n
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeNone:
		return nil
	case ModeLocal:
		if c.Username == "" {
			return fmt.Errorf("username required for local mode")
		}
		if _, err := bcrypt.Cost([]byte(c.PasswordHash)); err != nil {
			return fmt.Errorf("invalid password_hash: %w", err)
		}
		if len(c.JWTSecret) < minSecretLength {
			return fmt.Errorf("jwt_secret must be at least %d bytes", minSecretLength)
		}
	case ModeOIDC:
		if c.OIDCIssuer == "" {
			return fmt.Errorf("oidc_issuer required for oidc mode")
		}
		if c.OIDCClientID == "" {
			return fmt.Errorf("oidc_client_id required for oidc mode")
		}
	default:
		return fmt.Errorf("invalid mode: %q", c.Mode)
	}

	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return fmt.Errorf("invalid token_ttl: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	if c.LoginPerMinute < 1 {
		return fmt.Errorf("login_per_minute must be positive")
	}
	if c.LoginBurst < 1 {
		return fmt.Errorf("login_burst must be positive")
	}
	return nil
}
