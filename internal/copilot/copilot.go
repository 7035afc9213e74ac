// Package copilot forwards reviewer questions about an application to the
// analysis backend.
package copilot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/pkg/handlers"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

var (
	ErrQuestionRequired    = errors.New("question required")
	ErrApplicationRequired = errors.New("application_id required")
)

// Asker answers questions grounded in an application's documents.
type Asker interface {
	Ask(ctx context.Context, id, question string) (*backend.Answer, error)
}

type Request struct {
	ApplicationID string `json:"application_id"`
	Question      string `json:"question"`
}

type Handler struct {
	asker  Asker
	logger *slog.Logger
}

func NewHandler(asker Asker, logger *slog.Logger) *Handler {
	return &Handler{
		asker:  asker,
		logger: logger.With("handler", "copilot"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/copilot",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Ask},
		},
	}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	question := strings.TrimSpace(req.Question)
	switch {
	case req.ApplicationID == "":
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrApplicationRequired)
		return
	case question == "":
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrQuestionRequired)
		return
	}

	answer, err := h.asker.Ask(r.Context(), req.ApplicationID, question)
	if err != nil {
		handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
		return
	}
	if answer.Sources == nil {
		answer.Sources = []any{}
	}

	handlers.RespondJSON(w, http.StatusOK, answer)
}
