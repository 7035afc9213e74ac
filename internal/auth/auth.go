// Package auth authenticates credit officers. The local provider issues its
// own signed session tokens; the oidc provider verifies ID tokens from an
// external identity provider.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// CookieName is the session cookie set on login.
const CookieName = "creditdesk_session"

// User is an authenticated reviewer.
type User struct {
	Subject string `json:"subject"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Token is an issued session token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Provider authenticates users and resolves tokens to users.
type Provider interface {
	Login(ctx context.Context, username, password string) (*Token, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*User, error)
}

// New builds the provider selected by cfg.Mode. It returns a nil Provider
// when authentication is disabled.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (Provider, error) {
	logger = logger.With("system", "auth", "mode", cfg.Mode)

	switch cfg.Mode {
	case ModeNone:
		logger.Warn("authentication disabled")
		return nil, nil
	case ModeLocal:
		return NewLocal(cfg, logger)
	case ModeOIDC:
		return newOIDCFromConfig(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// TokenFromRequest returns the bearer token or, failing that, the session
// cookie value. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

type userKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the authenticated user stored in ctx.
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}

// ReviewerName returns the display name of the authenticated user, or
// fallback when the request is anonymous or the user has no name.
func ReviewerName(ctx context.Context, fallback string) string {
	if u, ok := UserFrom(ctx); ok && u.Name != "" {
		return u.Name
	}
	return fallback
}
