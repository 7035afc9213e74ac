package views

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/creditdesk/internal/review"
)

var (
	ErrNotFound            = errors.New("view not found")
	ErrApplicationRequired = errors.New("application_id required")
)

// MapHTTPStatus maps view and review errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrApplicationRequired):
		return http.StatusBadRequest
	}
	return review.MapHTTPStatus(err)
}
