package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"
)

type oidcClaims struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

type oidcProvider struct {
	verifier *oidc.IDTokenVerifier
	logger   *slog.Logger
}

// NewOIDC creates a provider that accepts ID tokens passing verifier. Sign-in
// happens at the identity provider, so Login is unsupported.
func NewOIDC(verifier *oidc.IDTokenVerifier, logger *slog.Logger) Provider {
	return &oidcProvider{verifier: verifier, logger: logger}
}

func newOIDCFromConfig(ctx context.Context, cfg *Config, logger *slog.Logger) (Provider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc issuer %s: %w", cfg.OIDCIssuer, err)
	}

	logger.Info("oidc issuer discovered", "issuer", cfg.OIDCIssuer)
	return NewOIDC(provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID}), logger), nil
}

func (p *oidcProvider) Login(context.Context, string, string) (*Token, error) {
	return nil, ErrUnsupported
}

// Logout has nothing to revoke locally; the identity provider owns the session.
func (p *oidcProvider) Logout(context.Context, string) error {
	return nil
}

func (p *oidcProvider) CurrentUser(ctx context.Context, token string) (*User, error) {
	idToken, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %w", ErrUnauthenticated, err)
	}

	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}
	if name == "" {
		name = claims.Email
	}

	return &User{Subject: idToken.Subject, Name: name, Email: claims.Email}, nil
}
