package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/internal/metrics"
)

// Decide handles an Approve, Reject or Review Required action. A decision that
// matches the effective AI decision is submitted immediately. A differing
// decision opens an OverrideDialog and waits for ConfirmOverride.
func (s *Session) Decide(ctx context.Context, decision applications.Decision) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.alive(); err != nil {
		return err
	}
	if !decision.Valid() {
		return s.fail(fmt.Errorf("%w: %q", ErrInvalidDecision, decision))
	}
	if err := s.guardDecision(); err != nil {
		return s.fail(err)
	}

	ai := s.store.current().EffectiveAIDecision()
	if decision != ai {
		s.setDialog(OverrideDialog{Decision: decision, AIDecision: ai})
		s.changed()
		return nil
	}

	return s.submit(ctx, decision, nil)
}

// ConfirmOverride submits the pending override with its justification.
// A blank reason blocks the submission and no backend call is made.
func (s *Session) ConfirmOverride(ctx context.Context, reason string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.alive(); err != nil {
		return err
	}

	pending, ok := s.Dialog().(OverrideDialog)
	if !ok {
		return s.fail(ErrNoPendingOverride)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return s.fail(ErrReasonRequired)
	}
	if err := s.guardDecision(); err != nil {
		return s.fail(err)
	}

	return s.submit(ctx, pending.Decision, &reason)
}

// CancelOverride closes a pending override without submitting it.
func (s *Session) CancelOverride() {
	s.mu.Lock()
	if _, ok := s.dialog.(OverrideDialog); ok {
		s.dialog = nil
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Session) submit(ctx context.Context, decision applications.Decision, reason *string) error {
	req := backend.VerifyRequest{
		Decision:       decision,
		ReviewerName:   s.reviewer,
		OverrideReason: reason,
	}

	result, err := s.backend.Verify(ctx, s.appID, req)
	metrics.RecordDecision(reason != nil, err)

	action := Action{Kind: ActionDecision, Decision: decision, Err: err}
	if reason != nil {
		action.Kind = ActionOverride
		action.Reason = *reason
	}

	if err != nil {
		s.logger.Warn("decision submission failed", "decision", decision, "error", err)
		s.record(ctx, action)
		return s.fail(fmt.Errorf("submit decision: %w", err))
	}

	s.logger.Info("decision recorded",
		"decision", decision,
		"override", reason != nil,
		"review_status", result.ReviewStatus,
	)

	s.setDialog(nil)
	s.refreshAfter(ctx, "decision")
	s.setDialog(LockDialog{Decision: decision})

	action.Application = s.store.current()
	s.record(ctx, action)
	s.changed()
	return nil
}
