package activity

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/creditdesk/pkg/database"
	"github.com/JaimeStill/creditdesk/pkg/repository"
)

// Domain errors for activity operations.
var (
	ErrNotFound  = errors.New("activity entry not found")
	ErrDuplicate = errors.New("activity entry already exists")
	ErrInvalidID = errors.New("invalid activity entry id")
	// ErrInvalidEntry is returned when the journal table rejects a row,
	// for example an outcome outside success and failure.
	ErrInvalidEntry = errors.New("invalid activity entry")
)

var dbErrors = repository.Errors{
	NotFound:  ErrNotFound,
	Duplicate: ErrDuplicate,
	Invalid:   ErrInvalidEntry,
}

// MapHTTPStatus maps activity domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidEntry):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, database.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
