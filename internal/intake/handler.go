package intake

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/pkg/handlers"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

const formMemory = 32 << 20

type Handler struct {
	uploader Uploader
	logger   *slog.Logger
	maxSize  int64
}

// NewHandler creates an intake handler. maxSize bounds every single document.
func NewHandler(uploader Uploader, maxSize int64, logger *slog.Logger) *Handler {
	return &Handler{
		uploader: uploader,
		logger:   logger.With("handler", "intake"),
		maxSize:  maxSize,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/intake",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Submit},
			{Method: "POST", Pattern: "/batch", Handler: h.SubmitBatch},
		},
	}
}

// Submit validates all four documents before anything is forwarded. A
// backend-reported failure is returned as 422 with the backend message.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(len(Documents))*h.maxSize+formMemory)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: request exceeds %d bytes", ErrFileTooLarge, tooLarge.Limit)
		} else {
			err = fmt.Errorf("%w: %v", ErrInvalidForm, err)
		}
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	missing := Missing(func(field string) bool {
		return r.MultipartForm != nil && len(r.MultipartForm.File[field]) > 0
	})
	if len(missing) > 0 {
		err := missingError(missing)
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	files := make([]backend.UploadFile, 0, len(Documents))
	pages := make(map[string]int, len(Documents))

	for _, field := range Documents {
		header := r.MultipartForm.File[field][0]
		data, err := h.readLimit(header, h.maxSize)
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}

		count, err := Inspect(field, data, h.maxSize)
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}

		pages[field] = count
		files = append(files, backend.UploadFile{
			Field:       field,
			Filename:    header.Filename,
			ContentType: "application/pdf",
			Data:        data,
		})
	}

	result, err := h.uploader.Upload(r.Context(), files)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusUnprocessableEntity
		h.logger.Warn("backend rejected application upload", "message", result.Message)
	} else {
		h.logger.Info("application submitted", "application_id", result.ApplicationID, "pages", pages)
	}

	handlers.RespondJSON(w, status, Result{UploadResult: *result, Pages: pages})
}

// readLimit loads at most one byte past the limit so oversized files are
// detected without buffering them whole.
func (h *Handler) readLimit(header *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	return data, nil
}
