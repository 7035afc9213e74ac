package views

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/auth"
	"github.com/JaimeStill/creditdesk/internal/review"
	"github.com/JaimeStill/creditdesk/pkg/handlers"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

type MountRequest struct {
	ApplicationID string `json:"application_id"`
}

type DecisionRequest struct {
	Decision string `json:"decision"`
}

type OverrideRequest struct {
	Reason string `json:"reason"`
}

type LockRequest struct {
	Acknowledged bool `json:"acknowledged"`
}

type CommentRequest struct {
	Comment string `json:"comment"`
}

type NavigateRequest struct {
	Direction string `json:"direction"`
}

// Handler exposes the registry over HTTP.
type Handler struct {
	registry        *Registry
	logger          *slog.Logger
	defaultReviewer string
	upgrader        websocket.Upgrader
}

// NewHandler creates a Handler. Reviewers without an authenticated display
// name act as defaultReviewer. Websocket upgrades are accepted from origins;
// an empty list allows same-origin clients only.
func NewHandler(registry *Registry, logger *slog.Logger, defaultReviewer string, origins []string) *Handler {
	return &Handler{
		registry:        registry,
		logger:          logger.With("handler", "views"),
		defaultReviewer: defaultReviewer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(origins),
		},
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/views",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Mount},
			{Method: "GET", Pattern: "/{id}", Handler: h.Get},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Unmount},
			{Method: "POST", Pattern: "/{id}/decision", Handler: h.Decide},
			{Method: "POST", Pattern: "/{id}/override", Handler: h.ConfirmOverride},
			{Method: "DELETE", Pattern: "/{id}/override", Handler: h.CancelOverride},
			{Method: "POST", Pattern: "/{id}/lock", Handler: h.ConfirmLock},
			{Method: "DELETE", Pattern: "/{id}/lock", Handler: h.CancelLock},
			{Method: "POST", Pattern: "/{id}/email", Handler: h.SendEmail},
			{Method: "DELETE", Pattern: "/{id}/email", Handler: h.DismissEmail},
			{Method: "PUT", Pattern: "/{id}/comment", Handler: h.SetComment},
			{Method: "POST", Pattern: "/{id}/retry", Handler: h.Retry},
			{Method: "POST", Pattern: "/{id}/refresh", Handler: h.Refresh},
			{Method: "POST", Pattern: "/{id}/navigate", Handler: h.Navigate},
			{Method: "GET", Pattern: "/{id}/events", Handler: h.Events},
		},
	}
}

func (h *Handler) Mount(w http.ResponseWriter, r *http.Request) {
	var req MountRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	reviewer := auth.ReviewerName(r.Context(), h.defaultReviewer)
	v, err := h.registry.Mount(r.Context(), req.ApplicationID, reviewer)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, v.Session.State())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(v *View) error { return nil })
}

func (h *Handler) Unmount(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Unmount(r.PathValue("id")); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	decision, ok := applications.ParseDecision(req.Decision)
	if !ok {
		decision = applications.Decision(req.Decision)
	}

	h.with(w, r, func(v *View) error {
		return v.Session.Decide(r.Context(), decision)
	})
}

func (h *Handler) ConfirmOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	h.with(w, r, func(v *View) error {
		return v.Session.ConfirmOverride(r.Context(), req.Reason)
	})
}

func (h *Handler) CancelOverride(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(v *View) error {
		v.Session.CancelOverride()
		return nil
	})
}

func (h *Handler) ConfirmLock(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if err := handlers.DecodeJSON(r, &req, true); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	h.with(w, r, func(v *View) error {
		return v.Session.ConfirmLock(r.Context(), req.Acknowledged)
	})
}

func (h *Handler) CancelLock(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(v *View) error {
		v.Session.CancelLock()
		return nil
	})
}

func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(v *View) error {
		return v.Session.SendEmail(r.Context())
	})
}

func (h *Handler) DismissEmail(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(v *View) error {
		v.Session.DismissEmail()
		return nil
	})
}

func (h *Handler) SetComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	h.with(w, r, func(v *View) error {
		return v.Session.SetComment(r.Context(), req.Comment)
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(v *View) error {
		return v.Session.Retry(r.Context())
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(v *View) error {
		return v.Session.Refresh(r.Context())
	})
}

// Navigate returns the state of the view mounted for the neighbour, or 204
// when there is none.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	dir, ok := applications.ParseDirection(req.Direction)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, review.ErrInvalidDirection)
		return
	}

	nv, moved, err := h.registry.Navigate(r.Context(), r.PathValue("id"), dir)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	if !moved {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, nv.Session.State())
}

// with runs op against the addressed view and responds with its state.
func (h *Handler) with(w http.ResponseWriter, r *http.Request, op func(*View) error) {
	v, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if err := op(v); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, v.Session.State())
}
