package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates the backend has no record for the requested application.
	ErrNotFound = errors.New("application not found")
	// ErrUnavailable wraps transport failures: refused connections, timeouts, cancellations.
	ErrUnavailable = errors.New("analysis backend unavailable")
)

// StatusError is a non-2xx response reported by the backend.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// MapHTTPStatus maps backend errors to the status a console client should see.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnavailable) {
		return http.StatusBadGateway
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= 400 && se.StatusCode < 500 {
			return se.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
