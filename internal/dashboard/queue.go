package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/review"
)

// ViewCloser closes the mounted review views of an application.
type ViewCloser interface {
	CloseApplication(appID string) int
}

// Deletion reports a removed application.
type Deletion struct {
	ApplicationID string `json:"application_id"`
	ClosedViews   int    `json:"closed_views"`
}

// Status returns the backend's processing status for id.
func (s *System) Status(ctx context.Context, id string) (*applications.StatusReport, error) {
	report, err := s.source.Status(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", id, err)
	}
	return report, nil
}

// Delete removes an application from the backend. On success every view of
// it is closed, it is dropped from the cached overview and the overview is
// refreshed. The attempt is recorded either way.
func (s *System) Delete(ctx context.Context, id, reviewer string) (Deletion, error) {
	d := Deletion{ApplicationID: id}

	err := s.source.Delete(ctx, id)
	if err == nil {
		if s.views != nil {
			d.ClosedViews = s.views.CloseApplication(id)
		}
		s.forget(id)
	}

	s.recorder.Record(ctx, review.Action{
		Kind:          review.ActionDelete,
		ApplicationID: id,
		Reviewer:      reviewer,
		Detail:        fmt.Sprintf("closed_views=%d", d.ClosedViews),
		Err:           err,
	})

	if err != nil {
		return d, fmt.Errorf("delete %s: %w", id, err)
	}

	s.logger.Info("application deleted", "application_id", id, "reviewer", reviewer, "closed_views", d.ClosedViews)

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after delete failed", "application_id", id, "error", err)
	}
	return d, nil
}

// Analytics returns the backend's analytics summary unchanged.
func (s *System) Analytics(ctx context.Context) (json.RawMessage, error) {
	raw, err := s.source.Analytics(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return raw, nil
}

// Export streams the backend CSV export of every application to w.
func (s *System) Export(ctx context.Context, w io.Writer) (int64, error) {
	n, err := s.source.Export(ctx, w)
	if err != nil {
		return n, fmt.Errorf("export: %w", err)
	}
	return n, nil
}

// ExportFilename names an export taken now.
func (s *System) ExportFilename() string {
	return "applications_export_" + s.clock.Now().Format("2006-01-02") + ".csv"
}

func (s *System) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]applications.Summary, 0, len(s.overview.Applications))
	for _, a := range s.overview.Applications {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	s.overview.Applications = kept
}
