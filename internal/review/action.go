package review

import (
	"context"

	"github.com/JaimeStill/creditdesk/internal/applications"
)

// ActionKind names a reviewer action.
type ActionKind string

const (
	ActionDecision ActionKind = "decision"
	ActionOverride ActionKind = "override"
	ActionLock     ActionKind = "lock"
	ActionEmail    ActionKind = "email"
	ActionComment  ActionKind = "comment"
	ActionRetry    ActionKind = "retry"
	ActionNavigate ActionKind = "navigate"
	ActionDelete   ActionKind = "delete"
)

// Action describes a completed backend call made on behalf of a reviewer.
type Action struct {
	Kind          ActionKind
	ViewID        string
	ApplicationID string
	Reviewer      string
	Decision      applications.Decision
	Reason        string
	Detail        string
	EmailMode     applications.EmailMode
	Err           error

	// Application is the snapshot after the action, when one was fetched.
	Application *applications.Application
}

// Succeeded reports whether the backend call succeeded.
func (a Action) Succeeded() bool {
	return a.Err == nil
}

// Recorder observes reviewer actions. Implementations must not block for long
// and own their failure handling.
type Recorder interface {
	Record(ctx context.Context, action Action)
}

// Recorders fans an action out to several recorders in order.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, action Action) {
	for _, r := range rs {
		if r != nil {
			r.Record(ctx, action)
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Action) {}
