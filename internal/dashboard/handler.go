package dashboard

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/creditdesk/internal/auth"
	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/pkg/handlers"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

var ErrApplicationRequired = errors.New("application id required")

type Handler struct {
	sys             *System
	defaultReviewer string
	logger          *slog.Logger
}

func NewHandler(sys *System, defaultReviewer string, logger *slog.Logger) *Handler {
	return &Handler{
		sys:             sys,
		defaultReviewer: defaultReviewer,
		logger:          logger.With("handler", "dashboard"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/dashboard",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Get},
			{Method: "POST", Pattern: "/refresh", Handler: h.Refresh},
			{Method: "GET", Pattern: "/analytics", Handler: h.Analytics},
			{Method: "GET", Pattern: "/export", Handler: h.Export},
			{Method: "GET", Pattern: "/applications/{id}/status", Handler: h.Status},
			{Method: "DELETE", Pattern: "/applications/{id}", Handler: h.Delete},
		},
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.sys.Overview())
}

// Refresh forces a refresh. On failure the error status is returned and the
// cached overview is left in place.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	overview, err := h.sys.Refresh(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, overview)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrApplicationRequired)
		return
	}

	report, err := h.sys.Status(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrApplicationRequired)
		return
	}

	reviewer := auth.ReviewerName(r.Context(), h.defaultReviewer)
	d, err := h.sys.Delete(r.Context(), id, reviewer)
	if err != nil {
		handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, d)
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	raw, err := h.sys.Analytics(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, raw)
}

// Export streams the CSV export as a download. Headers are committed with
// the first byte, so a backend failure before any data is a JSON error and
// one after it truncates the download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	dw := &download{w: w, filename: h.sys.ExportFilename()}

	n, err := h.sys.Export(r.Context(), dw)
	if err != nil {
		if !dw.started {
			handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
			return
		}
		h.logger.Error("export interrupted", "bytes", n, "error", err)
		return
	}
	if !dw.started {
		dw.start()
	}
	h.logger.Info("applications exported", "bytes", n, "file", dw.filename)
}

type download struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (d *download) start() {
	d.started = true
	d.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	d.w.Header().Set("Content-Disposition", `attachment; filename="`+d.filename+`"`)
	d.w.WriteHeader(http.StatusOK)
}

func (d *download) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !d.started {
		d.start()
	}
	return d.w.Write(p)
}
