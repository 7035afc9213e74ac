package auth

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/creditdesk/pkg/handlers"
)

// Require rejects requests without a valid token and stores the resolved user
// in the request context. A nil provider disables the check.
func Require(p Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	if p == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	logger = logger.With("middleware", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				handlers.RespondError(w, logger, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}

			user, err := p.CurrentUser(r.Context(), token)
			if err != nil {
				handlers.RespondError(w, logger, MapHTTPStatus(err), err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
