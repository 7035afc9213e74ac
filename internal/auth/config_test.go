package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/creditdesk/internal/auth"
)

var testEnv = &auth.Env{
	Mode:           "TEST_AUTH_MODE",
	Username:       "TEST_AUTH_USERNAME",
	JWTSecret:      "TEST_AUTH_JWT_SECRET",
	TokenTTL:       "TEST_AUTH_TOKEN_TTL",
	CookieSecure:   "TEST_AUTH_COOKIE_SECURE",
	LoginPerMinute: "TEST_AUTH_LOGIN_PER_MINUTE",
}

func TestConfigDefaults(t *testing.T) {
	cfg := localConfig(t)

	if cfg.JWTIssuer != "creditdesk" {
		t.Errorf("issuer: got %q", cfg.JWTIssuer)
	}
	if cfg.TokenTTLDuration() != 8*time.Hour {
		t.Errorf("ttl: got %v", cfg.TokenTTLDuration())
	}
	if cfg.LoginPerMinute != 10 || cfg.LoginBurst != 5 {
		t.Errorf("login rate: got %d/%d", cfg.LoginPerMinute, cfg.LoginBurst)
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	cfg := localConfig(t)

	t.Setenv("TEST_AUTH_USERNAME", "lead")
	t.Setenv("TEST_AUTH_TOKEN_TTL", "1h")
	t.Setenv("TEST_AUTH_COOKIE_SECURE", "true")
	t.Setenv("TEST_AUTH_LOGIN_PER_MINUTE", "3")

	if err := cfg.Finalize(testEnv); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.Username != "lead" || cfg.TokenTTL != "1h" || !cfg.CookieSecure || cfg.LoginPerMinute != 3 {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*auth.Config)
		wantErr string
	}{
		{"unknown mode", func(c *auth.Config) { c.Mode = "ldap" }, "invalid mode"},
		{"missing username", func(c *auth.Config) { c.Username = "" }, "username required"},
		{"plain password", func(c *auth.Config) { c.PasswordHash = "hunter2" }, "invalid password_hash"},
		{"short secret", func(c *auth.Config) { c.JWTSecret = "short" }, "jwt_secret"},
		{"bad ttl", func(c *auth.Config) { c.TokenTTL = "soon" }, "invalid token_ttl"},
		{"oidc without issuer", func(c *auth.Config) { c.Mode = auth.ModeOIDC; c.OIDCClientID = "x" }, "oidc_issuer required"},
		{"oidc without client", func(c *auth.Config) { c.Mode = auth.ModeOIDC; c.OIDCIssuer = "https://id" }, "oidc_client_id required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig(t)
			tt.mutate(cfg)
			err := cfg.Finalize(nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigNoneSkipsValidation(t *testing.T) {
	cfg := &auth.Config{Mode: auth.ModeNone}
	if err := cfg.Finalize(nil); err != nil {
		t.Errorf("none mode: %v", err)
	}
}

func TestConfigMerge(t *testing.T) {
	cfg := localConfig(t)
	cfg.CookieSecure = true

	cfg.Merge(&auth.Config{Mode: auth.ModeOIDC, OIDCIssuer: "https://id"})

	if cfg.Mode != auth.ModeOIDC || cfg.OIDCIssuer != "https://id" {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	if !cfg.CookieSecure || cfg.Username != "officer" {
		t.Errorf("unset overlay fields must keep base values: %+v", cfg)
	}
}
