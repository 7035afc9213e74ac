package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type sessionClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type local struct {
	username string
	hash     []byte
	name     string
	secret   []byte
	issuer   string
	ttl      time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewLocal creates a provider backed by a single configured credential. It
// issues HS256 session tokens and revokes them by id on logout.
func NewLocal(cfg *Config, logger *slog.Logger) (Provider, error) {
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("password hash: %w", err)
	}
	return &local{
		username: cfg.Username,
		hash:     []byte(cfg.PasswordHash),
		name:     cfg.DisplayName,
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		ttl:      cfg.TokenTTLDuration(),
		logger:   logger,
		revoked:  make(map[string]time.Time),
	}, nil
}

func (l *local) Login(ctx context.Context, username, password string) (*Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(l.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(l.hash, []byte(password))
	if !userOK || passErr != nil {
		l.logger.Warn("login rejected", "username", username)
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expires := now.Add(l.ttl)

	claims := sessionClaims{
		Name: l.name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   l.username,
			Issuer:    l.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	l.logger.Info("login succeeded", "username", username)
	return &Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (l *local) Logout(ctx context.Context, token string) error {
	claims, err := l.parse(token)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for id, exp := range l.revoked {
		if now.After(exp) {
			delete(l.revoked, id)
		}
	}
	l.revoked[claims.ID] = claims.ExpiresAt.Time

	l.logger.Info("logout", "username", claims.Subject)
	return nil
}

func (l *local) CurrentUser(ctx context.Context, token string) (*User, error) {
	claims, err := l.parse(token)
	if err != nil {
		return nil, err
	}
	return &User{Subject: claims.Subject, Name: claims.Name}, nil
}

func (l *local) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (any, error) { return l.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(l.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: token has no id", ErrUnauthenticated)
	}

	l.mu.Lock()
	_, revoked := l.revoked[claims.ID]
	l.mu.Unlock()
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}
