package review

import (
	"context"
	"fmt"

	"github.com/JaimeStill/creditdesk/internal/applications"
)

// SetComment replaces the reviewer annotation. Comments are independent of
// the decision lifecycle and allowed in any state.
func (s *Session) SetComment(ctx context.Context, comment string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.alive(); err != nil {
		return err
	}

	err := s.backend.Comment(ctx, s.appID, comment)
	s.record(ctx, Action{Kind: ActionComment, Detail: comment, Err: err})
	if err != nil {
		return s.fail(fmt.Errorf("save comment: %w", err))
	}

	s.refreshAfter(ctx, "comment")
	s.flash(NoticeSuccess, "Comment saved", s.cfg.NoticeTTL)
	s.changed()
	return nil
}

// Retry re-queues analysis for a failed application and resumes polling.
func (s *Session) Retry(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.alive(); err != nil {
		return err
	}
	if s.store.current().Status != applications.StatusFailed {
		return s.fail(ErrNotFailed)
	}

	result, err := s.backend.Retry(ctx, s.appID)
	s.record(ctx, Action{Kind: ActionRetry, Err: err})
	if err != nil {
		return s.fail(fmt.Errorf("retry analysis: %w", err))
	}

	s.logger.Info("analysis retry scheduled", "status", result.Status)
	s.refreshAfter(ctx, "retry")
	s.changed()
	return nil
}

// Navigate resolves the neighbouring application in backend queue order. It
// returns false, with no error, when there is no neighbour. Navigation is
// independent of the decision state; the caller performs the view transition.
func (s *Session) Navigate(ctx context.Context, dir applications.Direction) (string, bool, error) {
	if err := s.alive(); err != nil {
		return "", false, err
	}
	parsed, ok := applications.ParseDirection(string(dir))
	if !ok {
		return "", false, s.fail(fmt.Errorf("%w: %q", ErrInvalidDirection, dir))
	}
	dir = parsed

	id, ok, err := s.backend.Navigate(ctx, s.appID, dir)
	s.record(ctx, Action{Kind: ActionNavigate, Detail: fmt.Sprintf("%s:%s", dir, id), Err: err})
	if err != nil {
		return "", false, s.fail(fmt.Errorf("navigate %s: %w", dir, err))
	}
	if !ok {
		s.logger.Debug("no adjacent application", "direction", dir)
	}
	return id, ok, nil
}
