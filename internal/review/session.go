// Package review implements the decision lifecycle of a single mounted
// application view: decision submission with override justification,
// irreversible locking, decision notification, and status polling.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/internal/metrics"
	"github.com/JaimeStill/creditdesk/pkg/poll"
)

// Backend is the subset of the analysis backend a review session drives.
type Backend interface {
	Application(ctx context.Context, id string) (*applications.Application, error)
	Verify(ctx context.Context, id string, req backend.VerifyRequest) (*backend.VerifyResult, error)
	LockDecision(ctx context.Context, id, reviewer string) (*backend.LockResult, error)
	SendEmail(ctx context.Context, id, reviewer string) (*backend.EmailResult, error)
	Comment(ctx context.Context, id, comment string) error
	Navigate(ctx context.Context, id string, dir applications.Direction) (string, bool, error)
	Retry(ctx context.Context, id string) (*backend.RetryResult, error)
}

// Config holds session timing.
type Config struct {
	PollInterval time.Duration
	NoticeTTL    time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = 5 * time.Second
	}
	return c
}

// Deps are the collaborators of a Session. Only Backend and Logger are required.
type Deps struct {
	Backend  Backend
	Logger   *slog.Logger
	Clock    clock.WithTickerAndDelayedExecution
	Recorder Recorder
	ViewID   string
}

// Session owns the snapshot and dialog state of one mounted application view.
// User operations are serialized; the status poller runs alongside them and
// the snapshot store keeps the newest completed fetch.
type Session struct {
	appID    string
	viewID   string
	reviewer string
	cfg      Config

	backend  Backend
	clock    clock.WithTickerAndDelayedExecution
	recorder Recorder
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	store  *store
	poller *poll.Task

	opMu sync.Mutex

	mu          sync.Mutex
	dialog      Dialog
	latch       applications.LockState
	emailMode   applications.EmailMode
	notice      *Notice
	noticeTimer clock.Timer
	closed      bool

	subMu  sync.Mutex
	subs   map[int]chan State
	nextID int

	closeOnce sync.Once
}

// Mount fetches the application and returns a session for it. Polling starts
// immediately when analysis is still in flight.
func Mount(ctx context.Context, appID, reviewer string, cfg Config, deps Deps) (*Session, error) {
	cfg = cfg.withDefaults()

	clk := deps.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	logger := deps.Logger.With("system", "review", "application_id", appID)
	if deps.ViewID != "" {
		logger = logger.With("view", deps.ViewID)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())

	s := &Session{
		appID:    appID,
		viewID:   deps.ViewID,
		reviewer: reviewer,
		cfg:      cfg,
		backend:  deps.Backend,
		clock:    clk,
		recorder: recorder,
		logger:   logger,
		ctx:      sessionCtx,
		cancel:   cancel,
		store:    newStore(logger),
		subs:     make(map[int]chan State),
	}

	s.poller = poll.New("status", cfg.PollInterval, clk, s.pollTick, logger)
	s.poller.OnError = func(error) { metrics.RecordPollFailure("status") }

	if err := s.reload(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("mount %s: %w", appID, err)
	}
	s.syncPolling()

	logger.Info("view mounted", "reviewer", reviewer)
	return s, nil
}

// ApplicationID returns the id of the mounted application.
func (s *Session) ApplicationID() string {
	return s.appID
}

// Reviewer returns the identity decisions are submitted under.
func (s *Session) Reviewer() string {
	return s.reviewer
}

// Snapshot returns the current application record.
func (s *Session) Snapshot() *applications.Application {
	return s.store.current()
}

// Dialog returns the open confirmation step, nil when none is open.
func (s *Session) Dialog() Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialog
}

// Polling reports whether the status poller is running.
func (s *Session) Polling() bool {
	return s.poller.Active()
}

// Refresh refetches the snapshot and re-evaluates polling.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.alive(); err != nil {
		return err
	}
	if err := s.refresh(ctx); err != nil {
		return s.fail(fmt.Errorf("refresh: %w", err))
	}
	s.changed()
	return nil
}

// Close disposes the session. A response arriving after Close is never applied.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.store.dispose()
		s.cancel()
		s.poller.Stop()

		s.mu.Lock()
		s.closed = true
		if s.noticeTimer != nil {
			s.noticeTimer.Stop()
			s.noticeTimer = nil
		}
		s.mu.Unlock()

		s.subMu.Lock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
		s.subMu.Unlock()

		s.logger.Info("view closed")
	})
}

// Subscribe returns a channel receiving the latest State after every change,
// and a function that ends the subscription. Slow readers only see the most
// recent state. The channel closes when the session closes.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan State, 1)
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

func (s *Session) changed() {
	state := s.State()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (s *Session) alive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// reload fetches and applies a snapshot without touching the poller.
func (s *Session) reload(ctx context.Context) error {
	gen := s.store.begin()
	app, err := s.backend.Application(ctx, s.appID)
	if err != nil {
		return err
	}
	s.store.apply(gen, app)
	return nil
}

func (s *Session) refresh(ctx context.Context) error {
	if err := s.reload(ctx); err != nil {
		return err
	}
	s.syncPolling()
	return nil
}

// refreshAfter reloads after a successful mutation. A failed reload keeps the
// last known snapshot and is surfaced as a notice.
func (s *Session) refreshAfter(ctx context.Context, op string) {
	if err := s.refresh(ctx); err != nil {
		s.logger.Warn("refresh after mutation failed", "operation", op, "error", err)
		s.flash(NoticeError, fmt.Sprintf("%s succeeded but the view could not be refreshed: %v", op, err), 0)
	}
}

func (s *Session) syncPolling() {
	snap := s.store.current()
	if snap == nil {
		return
	}

	pending := snap.Status.Pending()
	active := s.poller.Active()

	switch {
	case pending && !active:
		s.poller.Activate(s.ctx)
		s.logger.Debug("status polling activated", "status", snap.Status)
	case !pending && active:
		s.poller.Deactivate()
		s.logger.Debug("status polling deactivated", "status", snap.Status)
	}
}

func (s *Session) pollTick(ctx context.Context) (bool, error) {
	if err := s.reload(ctx); err != nil {
		return false, err
	}
	s.changed()

	snap := s.store.current()
	return snap == nil || !snap.Status.Pending(), nil
}

// fail surfaces err as an error notice and returns it.
func (s *Session) fail(err error) error {
	if errors.Is(err, ErrClosed) {
		return err
	}
	s.flash(NoticeError, err.Error(), 0)
	s.changed()
	return err
}

func (s *Session) record(ctx context.Context, action Action) {
	action.ViewID = s.viewID
	action.ApplicationID = s.appID
	action.Reviewer = s.reviewer
	s.recorder.Record(context.WithoutCancel(ctx), action)
}

func (s *Session) setDialog(d Dialog) {
	s.mu.Lock()
	s.dialog = d
	s.mu.Unlock()
}

func (s *Session) guardDecision() error {
	if s.lockState() != applications.Unlocked {
		return ErrDecisionLocked
	}
	if s.store.current().Status.Pending() {
		return ErrAnalysisInProgress
	}
	return nil
}
