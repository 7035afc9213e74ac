// Package views keeps the review sessions mounted by console clients and
// exposes them over HTTP and websocket.
package views

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/metrics"
	"github.com/JaimeStill/creditdesk/internal/review"
	"github.com/JaimeStill/creditdesk/pkg/lifecycle"
	"github.com/JaimeStill/creditdesk/pkg/poll"
)

// Config tunes the registry. A nil Clock uses the real clock.
type Config struct {
	Review        review.Config
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	Clock         clock.WithTickerAndDelayedExecution
}

// View is one mounted review session.
type View struct {
	ID      string
	Session *review.Session

	mu       sync.Mutex
	lastSeen time.Time
	sockets  int
}

func (v *View) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *View) idle(now time.Time, timeout time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sockets == 0 && now.Sub(v.lastSeen) >= timeout
}

// Registry owns the mounted views. Views without an attached socket are
// closed once idle for longer than the configured timeout.
type Registry struct {
	backend  review.Backend
	recorder review.Recorder
	cfg      Config
	clock    clock.WithTickerAndDelayedExecution
	logger   *slog.Logger
	sweeper  *poll.Task

	mu    sync.Mutex
	views map[string]*View
}

func NewRegistry(backend review.Backend, recorder review.Recorder, cfg Config, logger *slog.Logger) *Registry {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	r := &Registry{
		backend:  backend,
		recorder: recorder,
		cfg:      cfg,
		clock:    clk,
		logger:   logger.With("system", "views"),
		views:    make(map[string]*View),
	}

	r.sweeper = poll.New("view-sweeper", cfg.SweepInterval, clk, func(context.Context) (bool, error) {
		r.Sweep()
		return false, nil
	}, r.logger)

	return r
}

// Start runs the idle sweeper for the lifetime of lc and closes every view
// on shutdown.
func (r *Registry) Start(lc *lifecycle.Coordinator) {
	if r.cfg.IdleTimeout > 0 {
		r.sweeper.Activate(lc.Context())
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		r.sweeper.Stop()
		n := r.CloseAll()
		r.logger.Info("views closed", "count", n)
	})
}

// Mount fetches appID and registers a new view for it.
func (r *Registry) Mount(ctx context.Context, appID, reviewer string) (*View, error) {
	if appID == "" {
		return nil, ErrApplicationRequired
	}

	id := uuid.NewString()
	session, err := review.Mount(ctx, appID, reviewer, r.cfg.Review, review.Deps{
		Backend:  r.backend,
		Logger:   r.logger,
		Clock:    r.clock,
		Recorder: r.recorder,
		ViewID:   id,
	})
	if err != nil {
		return nil, err
	}

	v := &View{ID: id, Session: session, lastSeen: r.clock.Now()}

	r.mu.Lock()
	r.views[id] = v
	r.mu.Unlock()

	metrics.ViewMounted()
	return v, nil
}

// Get returns the view and marks it as used.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.Lock()
	v, ok := r.views[id]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	v.touch(r.clock.Now())
	return v, nil
}

// Unmount closes and forgets the view.
func (r *Registry) Unmount(id string) error {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	v.Session.Close()
	metrics.ViewUnmounted()
	return nil
}

// Navigate moves a view to the neighbouring application. The neighbour is
// mounted as a new view under the same reviewer and the old view is closed.
// It returns false when there is no neighbour, leaving the view in place.
func (r *Registry) Navigate(ctx context.Context, id string, dir applications.Direction) (*View, bool, error) {
	v, err := r.Get(id)
	if err != nil {
		return nil, false, err
	}

	next, ok, err := v.Session.Navigate(ctx, dir)
	if err != nil || !ok {
		return nil, false, err
	}

	nv, err := r.Mount(ctx, next, v.Session.Reviewer())
	if err != nil {
		return nil, false, err
	}

	if err := r.Unmount(id); err != nil {
		r.logger.Debug("navigated view already gone", "view", id)
	}
	return nv, true, nil
}

// Sweep closes idle views and returns how many were closed.
func (r *Registry) Sweep() int {
	now := r.clock.Now()

	r.mu.Lock()
	var idle []string
	for id, v := range r.views {
		if v.idle(now, r.cfg.IdleTimeout) {
			idle = append(idle, id)
		}
	}
	r.mu.Unlock()

	closed := 0
	for _, id := range idle {
		if r.Unmount(id) == nil {
			closed++
			r.logger.Info("idle view closed", "view", id)
		}
	}
	return closed
}

// CloseApplication unmounts every view of appID and returns how many were
// closed.
func (r *Registry) CloseApplication(appID string) int {
	r.mu.Lock()
	var ids []string
	for id, v := range r.views {
		if v.Session.ApplicationID() == appID {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if r.Unmount(id) == nil {
			n++
		}
	}
	if n > 0 {
		r.logger.Info("views of removed application closed", "application_id", appID, "count", n)
	}
	return n
}

// CloseAll unmounts every view.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if r.Unmount(id) == nil {
			n++
		}
	}
	return n
}

// Len returns the number of mounted views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *Registry) attach(v *View) {
	v.mu.Lock()
	v.sockets++
	v.mu.Unlock()
}

func (r *Registry) detach(v *View) {
	v.mu.Lock()
	v.sockets--
	v.lastSeen = r.clock.Now()
	v.mu.Unlock()
}
