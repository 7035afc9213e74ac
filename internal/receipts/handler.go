package receipts

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JaimeStill/creditdesk/pkg/handlers"
	"github.com/JaimeStill/creditdesk/pkg/routes"
	"github.com/JaimeStill/creditdesk/pkg/storage"
)

// ErrInvalidName indicates a receipt name that is not a JSON blob name.
var ErrInvalidName = errors.New("receipt name must be a .json file name")

// Handler serves archived receipts.
type Handler struct {
	store       Store
	logger      *slog.Logger
	maxListSize int32
}

func NewHandler(store Store, logger *slog.Logger, maxListSize int32) *Handler {
	return &Handler{
		store:       store,
		logger:      logger.With("handler", "receipts"),
		maxListSize: maxListSize,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/receipts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{application_id}", Handler: h.List},
			{Method: "GET", Pattern: "/{application_id}/{name}", Handler: h.Download},
		},
	}
}

// List returns one page of an application's receipts. Query parameters:
// marker, max_results.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	prefix, err := Prefix(r.PathValue("application_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	maxResults, err := storage.ParseMaxResults(r.URL.Query().Get("max_results"), h.maxListSize)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.store.List(r.Context(), prefix, r.URL.Query().Get("marker"), maxResults)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	prefix, err := Prefix(r.PathValue("application_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	name := r.PathValue("name")
	if !strings.HasSuffix(name, ".json") || name == ".json" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidName)
		return
	}

	result, err := h.store.Download(r.Context(), prefix+name)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	if result.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, result.Body)
}
