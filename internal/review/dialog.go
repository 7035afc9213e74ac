package review

import "github.com/JaimeStill/creditdesk/internal/applications"

// Dialog is the confirmation step a view is currently in. A nil Dialog means
// no step is open. The set of implementations is closed to this package, so a
// view can hold exactly one step at a time.
type Dialog interface {
	Name() string
	dialog()
}

// OverrideDialog waits for a justification of a decision that differs from
// the AI recommendation. No backend call has been made yet.
type OverrideDialog struct {
	Decision   applications.Decision
	AIDecision applications.Decision
}

// LockDialog follows a recorded decision and waits for the reviewer to
// acknowledge the irreversible lock. The decision remains changeable.
type LockDialog struct {
	Decision applications.Decision
}

// EmailDialog offers a manual notification send for a locked decision.
// Error carries the last backend-reported failure, if any.
type EmailDialog struct {
	Error string
}

func (OverrideDialog) Name() string { return "override" }
func (LockDialog) Name() string     { return "confirm_lock" }
func (EmailDialog) Name() string    { return "send_email" }

func (OverrideDialog) dialog() {}
func (LockDialog) dialog()     {}
func (EmailDialog) dialog()    {}

// DialogName returns the stable name of d, "none" when no dialog is open.
func DialogName(d Dialog) string {
	if d == nil {
		return "none"
	}
	return d.Name()
}

// DialogView is the serializable form of a Dialog.
type DialogView struct {
	Name       string                `json:"name"`
	Decision   applications.Decision `json:"decision,omitempty"`
	AIDecision applications.Decision `json:"ai_decision,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func viewDialog(d Dialog) DialogView {
	v := DialogView{Name: DialogName(d)}
	switch d := d.(type) {
	case OverrideDialog:
		v.Decision = d.Decision
		v.AIDecision = d.AIDecision
	case LockDialog:
		v.Decision = d.Decision
	case EmailDialog:
		v.Error = d.Error
	}
	return v
}
