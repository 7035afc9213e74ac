package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/JaimeStill/creditdesk/pkg/handlers"
	"github.com/JaimeStill/creditdesk/pkg/middleware"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

// LoginRequest carries local credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token
	User *User `json:"user"`
}

// Handler provides the session endpoints.
type Handler struct {
	provider Provider
	logger   *slog.Logger
	secure   bool
	limit    rate.Limit
	burst    int
}

// NewHandler creates a Handler for provider.
func NewHandler(provider Provider, cfg *Config, logger *slog.Logger) *Handler {
	return &Handler{
		provider: provider,
		logger:   logger.With("handler", "auth"),
		secure:   cfg.CookieSecure,
		limit:    rate.Every(time.Minute / time.Duration(max(cfg.LoginPerMinute, 1))),
		burst:    max(cfg.LoginBurst, 1),
	}
}

// Routes returns the session routes. Login is throttled per client address.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/logout", Handler: h.Logout},
			{Method: "GET", Pattern: "/me", Handler: h.Me},
		},
		Children: []routes.Group{
			{
				Middleware: middleware.Stack{middleware.RateLimit(h.limit, h.burst)},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/login", Handler: h.Login},
				},
			},
		},
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("username and password required"))
		return
	}

	token, err := h.provider.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	user, err := h.provider.CurrentUser(r.Context(), token.Value)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	handlers.RespondJSON(w, http.StatusOK, LoginResponse{Token: *token, User: user})
}

// Logout revokes the presented token, if any, and clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := TokenFromRequest(r); token != "" {
		err := h.provider.Logout(r.Context(), token)
		if err != nil && MapHTTPStatus(err) != http.StatusUnauthorized {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	token := TokenFromRequest(r)
	if token == "" {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, ErrUnauthenticated)
		return
	}

	user, err := h.provider.CurrentUser(r.Context(), token)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, user)
}
