package review

import (
	"context"
	"fmt"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/metrics"
)

const autoEmailUndelivered = "automatic notification was not delivered"

// ConfirmLock locks the recorded decision. It is only valid from a LockDialog
// and requires explicit acknowledgement. On failure the dialog stays open and
// the snapshot is untouched.
func (s *Session) ConfirmLock(ctx context.Context, acknowledged bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.alive(); err != nil {
		return err
	}

	pending, ok := s.Dialog().(LockDialog)
	if !ok {
		return s.fail(ErrNoPendingLock)
	}
	if !acknowledged {
		return s.fail(ErrLockNotAcknowledged)
	}
	if s.lockState() != applications.Unlocked {
		s.setDialog(nil)
		return s.fail(ErrDecisionLocked)
	}

	result, err := s.backend.LockDecision(ctx, s.appID, s.reviewer)
	metrics.RecordLock(err)

	if err != nil {
		s.logger.Warn("decision lock failed", "error", err)
		s.record(ctx, Action{Kind: ActionLock, Decision: pending.Decision, Err: err})
		return s.fail(fmt.Errorf("lock decision: %w", err))
	}

	mode := result.EmailMode
	if mode == "" {
		mode = applications.EmailModeManual
	}

	s.logger.Info("decision locked", "decision", pending.Decision, "email_mode", mode, "email_sent", result.EmailSent)

	latch := applications.LockedPendingSend
	switch {
	case result.EmailSent:
		latch = applications.LockedSent
	case mode == applications.EmailModeAuto:
		latch = applications.LockedFailed
	}

	s.mu.Lock()
	s.latch = latch
	s.emailMode = mode
	s.mu.Unlock()

	s.refreshAfter(ctx, "lock")

	switch {
	case result.EmailSent:
		metrics.RecordEmail(string(mode), true)
		s.setDialog(nil)
		s.flash(NoticeSuccess, "Decision locked and notification sent automatically", s.cfg.NoticeTTL)
	case mode == applications.EmailModeAuto:
		metrics.RecordEmail(string(mode), false)
		s.setDialog(EmailDialog{Error: autoEmailUndelivered})
	default:
		s.setDialog(EmailDialog{})
	}

	s.record(ctx, Action{
		Kind:        ActionLock,
		Decision:    pending.Decision,
		EmailMode:   mode,
		Application: s.store.current(),
	})
	s.changed()
	return nil
}

// CancelLock closes the lock confirmation. The recorded decision stays
// unlocked and may be changed.
func (s *Session) CancelLock() {
	s.mu.Lock()
	if _, ok := s.dialog.(LockDialog); ok {
		s.dialog = nil
	}
	s.mu.Unlock()
	s.changed()
}

// SendEmail triggers the decision notification for a locked decision that has
// not been delivered yet. A backend-reported failure returns an *EmailFailure
// and keeps the email dialog open so the reviewer can retry. There is no
// automatic retry.
func (s *Session) SendEmail(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.alive(); err != nil {
		return err
	}
	switch s.lockState() {
	case applications.Unlocked:
		return s.fail(ErrNotLocked)
	case applications.LockedSent:
		s.setDialog(nil)
		return s.fail(ErrAlreadyNotified)
	}

	result, err := s.backend.SendEmail(ctx, s.appID, s.reviewer)
	if err != nil {
		s.logger.Warn("decision email transport failure", "error", err)
		s.record(ctx, Action{Kind: ActionEmail, EmailMode: applications.EmailModeManual, Err: err})
		return s.fail(fmt.Errorf("send email: %w", err))
	}

	metrics.RecordEmail(string(applications.EmailModeManual), result.Success)

	if !result.Success {
		failure := &EmailFailure{Reason: result.Error}
		s.logger.Warn("decision email rejected", "reason", result.Error)

		s.advanceLatch(applications.LockedFailed)
		s.setDialog(EmailDialog{Error: failure.Reason})
		s.refreshAfter(ctx, "email")
		s.record(ctx, Action{Kind: ActionEmail, EmailMode: applications.EmailModeManual, Err: failure, Detail: failure.Reason})
		return s.fail(failure)
	}

	s.logger.Info("decision email sent", "recipient", result.Recipient)

	s.advanceLatch(applications.LockedSent)
	s.setDialog(nil)
	s.refreshAfter(ctx, "email")

	msg := "Decision email sent"
	if result.Recipient != "" {
		msg += " to " + result.Recipient
	}
	s.flash(NoticeSuccess, msg, s.cfg.NoticeTTL)

	s.record(ctx, Action{
		Kind:        ActionEmail,
		EmailMode:   applications.EmailModeManual,
		Detail:      result.Recipient,
		Application: s.store.current(),
	})
	s.changed()
	return nil
}

// DismissEmail closes the email dialog. The send can still be triggered later.
func (s *Session) DismissEmail() {
	s.mu.Lock()
	if _, ok := s.dialog.(EmailDialog); ok {
		s.dialog = nil
	}
	s.mu.Unlock()
	s.changed()
}

// lockState combines the snapshot with what this session has seen the
// backend confirm. A confirmed lock or delivery holds even while refreshes
// fail or lag; a newer snapshot can only move the state forward.
func (s *Session) lockState() applications.LockState {
	s.mu.Lock()
	latch := s.latch
	s.mu.Unlock()

	snap := s.store.current()
	if snap == nil || !snap.DecisionLocked {
		if latch == "" {
			return applications.Unlocked
		}
		return latch
	}

	st := snap.LockState()
	switch {
	case latch == applications.LockedSent:
		return applications.LockedSent
	case latch == applications.LockedFailed && st == applications.LockedPendingSend:
		return applications.LockedFailed
	}
	return st
}

// advanceLatch records a confirmed notification outcome. Sent is final.
func (s *Session) advanceLatch(next applications.LockState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latch != applications.LockedSent {
		s.latch = next
	}
}
