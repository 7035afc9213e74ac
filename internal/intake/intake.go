// Package intake validates the documents of a new credit application and
// forwards them to the analysis backend.
package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/pkg/formatting"
)

// Documents are the form fields every application must provide.
var Documents = []string{"application_form", "bank_statement", "essay", "payslip"}

var (
	ErrInvalidForm     = errors.New("invalid multipart form")
	ErrMissingDocument = errors.New("missing documents")
	ErrFileTooLarge    = errors.New("document exceeds maximum upload size")
	ErrNotPDF          = errors.New("document is not a readable PDF")
)

// MapHTTPStatus maps intake errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidForm),
		errors.Is(err, ErrMissingDocument),
		errors.Is(err, ErrNotPDF),
		errors.Is(err, ErrBatchFormat),
		errors.Is(err, ErrManifest):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return backend.MapHTTPStatus(err)
}

// Uploader submits validated documents and batch files.
type Uploader interface {
	Upload(ctx context.Context, files []backend.UploadFile) (*backend.UploadResult, error)
	UploadBatch(ctx context.Context, file backend.UploadFile) (*backend.BatchResult, error)
}

// Result is the backend upload response plus the page count of every document.
type Result struct {
	backend.UploadResult
	Pages map[string]int `json:"pages"`
}

// Inspect checks one document against the size limit and returns its page
// count.
func Inspect(field string, data []byte, maxSize int64) (int, error) {
	if int64(len(data)) > maxSize {
		return 0, fmt.Errorf("%w: %s exceeds %s", ErrFileTooLarge, field, formatting.FormatBytes(maxSize, 1))
	}

	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil || pages < 1 {
		return 0, fmt.Errorf("%w: %s", ErrNotPDF, field)
	}
	return pages, nil
}

// Missing returns the required documents absent from present, in form order.
func Missing(present func(field string) bool) []string {
	var missing []string
	for _, field := range Documents {
		if !present(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

func missingError(fields []string) error {
	return fmt.Errorf("%w: %s", ErrMissingDocument, strings.Join(fields, ", "))
}
