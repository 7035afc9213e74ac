// Package dashboard keeps a cached overview of the review queue, refreshed in
// the background from the analysis backend.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/metrics"
	"github.com/JaimeStill/creditdesk/internal/review"
	"github.com/JaimeStill/creditdesk/pkg/lifecycle"
	"github.com/JaimeStill/creditdesk/pkg/poll"
)

const poller = "dashboard"

// Source is the part of the backend client the dashboard reads and manages
// the queue through.
type Source interface {
	Applications(ctx context.Context, limit int) ([]applications.Summary, error)
	Stats(ctx context.Context) (*applications.Stats, error)
	Status(ctx context.Context, id string) (*applications.StatusReport, error)
	Delete(ctx context.Context, id string) error
	Analytics(ctx context.Context) (json.RawMessage, error)
	Export(ctx context.Context, w io.Writer) (int64, error)
}

// Overview is the cached dashboard payload. RefreshedAt is nil until the
// first successful refresh; LastError holds the most recent failure and is
// cleared by the next success.
type Overview struct {
	Applications []applications.Summary `json:"applications"`
	Stats        *applications.Stats    `json:"stats"`
	RefreshedAt  *time.Time             `json:"refreshed_at"`
	LastError    string                 `json:"last_error,omitempty"`
}

// Config tunes the refresh loop. A nil Clock uses the real clock. Views and
// Recorder are optional; deletions close the views of the deleted
// application and are recorded as reviewer actions.
type Config struct {
	Interval        time.Duration
	Limit           int
	Clock           clock.WithTicker
	DefaultReviewer string
	Views           ViewCloser
	Recorder        review.Recorder
}

// System owns the overview cache and its refresh task.
type System struct {
	source   Source
	limit    int
	clock    clock.PassiveClock
	logger   *slog.Logger
	task     *poll.Task
	reviewer string
	views    ViewCloser
	recorder review.Recorder

	mu       sync.RWMutex
	overview Overview
	issued   uint64
	applied  uint64
}

// New creates a dashboard over source. The refresh loop starts with Start.
func New(source Source, cfg Config, logger *slog.Logger) *System {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	s := &System{
		source:   source,
		limit:    cfg.Limit,
		clock:    clk,
		logger:   logger.With("system", "dashboard"),
		overview: Overview{Applications: []applications.Summary{}},
		reviewer: cfg.DefaultReviewer,
		views:    cfg.Views,
		recorder: cfg.Recorder,
	}
	if s.recorder == nil {
		s.recorder = review.Recorders{}
	}

	s.task = poll.New(poller, cfg.Interval, clk, func(ctx context.Context) (bool, error) {
		_, err := s.Refresh(ctx)
		return false, err
	}, s.logger)
	s.task.OnError = func(error) { metrics.RecordPollFailure(poller) }

	return s
}

// Start registers the initial refresh and the background loop with lc.
func (s *System) Start(lc *lifecycle.Coordinator) {
	lc.OnStartup(func() {
		if _, err := s.Refresh(lc.Context()); err != nil {
			s.logger.Warn("initial dashboard refresh failed", "error", err)
		}
		s.task.Activate(lc.Context())
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		s.task.Stop()
		s.logger.Info("dashboard stopped")
	})
}

// Overview returns the cached overview.
func (s *System) Overview() Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overview
}

// Refresh fetches the queue and its stats in parallel. A failure keeps the
// previous applications and stats and records the error. A fetch that
// completes after a newer one has been applied is dropped, so manual and
// background refreshes never move the overview backwards.
func (s *System) Refresh(ctx context.Context) (Overview, error) {
	s.mu.Lock()
	s.issued++
	gen := s.issued
	s.mu.Unlock()

	var (
		apps  []applications.Summary
		stats *applications.Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apps, err = s.source.Applications(gctx, s.limit)
		if err != nil {
			return fmt.Errorf("list applications: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stats, err = s.source.Stats(gctx)
		if err != nil {
			return fmt.Errorf("fetch stats: %w", err)
		}
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen <= s.applied {
		s.logger.Debug("stale dashboard refresh dropped", "generation", gen, "applied", s.applied)
		metrics.RecordDiscardedSnapshot()
		return s.overview, nil
	}
	s.applied = gen

	if err != nil {
		s.overview.LastError = err.Error()
		return s.overview, err
	}

	if apps == nil {
		apps = []applications.Summary{}
	}
	now := s.clock.Now()
	s.overview = Overview{
		Applications: apps,
		Stats:        stats,
		RefreshedAt:  &now,
	}
	return s.overview, nil
}

func (s *System) Handler() *Handler {
	return NewHandler(s, s.reviewer, s.logger)
}
