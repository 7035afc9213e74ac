package review

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/creditdesk/internal/backend"
)

var (
	// ErrDecisionLocked rejects decision changes once the decision is locked.
	ErrDecisionLocked = errors.New("decision is locked")
	// ErrAnalysisInProgress rejects decisions while backend analysis is running.
	ErrAnalysisInProgress = errors.New("analysis still in progress")
	// ErrInvalidDecision indicates a decision outside the known set.
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrReasonRequired blocks an override submitted without a justification.
	ErrReasonRequired = errors.New("override reason required")
	// ErrNoPendingOverride indicates no override is awaiting a reason.
	ErrNoPendingOverride = errors.New("no override awaiting confirmation")
	// ErrNoPendingLock indicates no recorded decision is awaiting lock confirmation.
	ErrNoPendingLock = errors.New("no decision awaiting lock confirmation")
	// ErrLockNotAcknowledged blocks a lock that was not explicitly acknowledged.
	ErrLockNotAcknowledged = errors.New("lock requires explicit acknowledgement")
	// ErrNotLocked rejects notification sends before the decision is locked.
	ErrNotLocked = errors.New("decision is not locked")
	// ErrAlreadyNotified rejects a manual send once the applicant has been notified.
	ErrAlreadyNotified = errors.New("decision notification already sent")
	// ErrNotFailed rejects a retry for an application that has not failed.
	ErrNotFailed = errors.New("application has not failed")
	// ErrInvalidDirection indicates a navigation direction other than previous or next.
	ErrInvalidDirection = errors.New("invalid navigation direction")
	// ErrClosed indicates the session was disposed.
	ErrClosed = errors.New("review session closed")
)

// EmailFailure is a notification failure reported by the backend, as opposed
// to a transport error. The reviewer may retry the send.
type EmailFailure struct {
	Reason string
}

func (e *EmailFailure) Error() string {
	if e.Reason == "" {
		return "decision email failed"
	}
	return "decision email failed: " + e.Reason
}

// MapHTTPStatus maps review errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidDecision),
		errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrLockNotAcknowledged),
		errors.Is(err, ErrInvalidDirection):
		return http.StatusBadRequest
	case errors.Is(err, ErrDecisionLocked),
		errors.Is(err, ErrAnalysisInProgress),
		errors.Is(err, ErrNoPendingOverride),
		errors.Is(err, ErrNoPendingLock),
		errors.Is(err, ErrNotLocked),
		errors.Is(err, ErrAlreadyNotified),
		errors.Is(err, ErrNotFailed):
		return http.StatusConflict
	case errors.Is(err, ErrClosed):
		return http.StatusGone
	}

	var ef *EmailFailure
	if errors.As(err, &ef) {
		return http.StatusBadGateway
	}
	return backend.MapHTTPStatus(err)
}
