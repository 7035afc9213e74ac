// Package activity keeps the reviewer activity journal: an append-only record
// of every decision, lock, notification, comment, retry, and navigation a
// credit officer performs through the console.
package activity

import (
	"time"

	"github.com/google/uuid"
)

// Outcomes of a journaled action.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one journaled reviewer action.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	Action        string    `json:"action"`
	Outcome       string    `json:"outcome"`
	Reviewer      string    `json:"reviewer"`
	ApplicationID string    `json:"application_id"`
	ViewID        *string   `json:"view_id,omitempty"`
	Decision      *string   `json:"decision,omitempty"`
	Reason        *string   `json:"reason,omitempty"`
	Detail        *string   `json:"detail,omitempty"`
	Error         *string   `json:"error,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
