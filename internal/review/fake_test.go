package review_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/internal/review"
)

// fakeBackend mimics the analysis backend's record keeping closely enough to
// drive whole decision flows.
type fakeBackend struct {
	mu  sync.Mutex
	app applications.Application

	fetches  int
	verifies []backend.VerifyRequest
	locks    int
	emails   int
	comments []string
	retries  int
	moves    []applications.Direction

	fetchFn      func(ctx context.Context, call int) (*applications.Application, error)
	verifyErr    error
	lockErr      error
	lockResult   backend.LockResult
	emailResults []backend.EmailResult
	emailErr     error
	neighbour    string
	navigateErr  error
}

func (f *fakeBackend) snapshot() *applications.Application {
	a := f.app
	a.DecisionHistory = slices.Clone(f.app.DecisionHistory)
	return &a
}

func (f *fakeBackend) Application(ctx context.Context, id string) (*applications.Application, error) {
	f.mu.Lock()
	f.fetches++
	call := f.fetches
	fn := f.fetchFn
	f.mu.Unlock()

	if fn != nil {
		if app, err := fn(ctx, call); app != nil || err != nil {
			return app, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(), nil
}

func (f *fakeBackend) Verify(ctx context.Context, id string, req backend.VerifyRequest) (*backend.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.verifies = append(f.verifies, req)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}

	override := f.app.AIDecision != "" && req.Decision != f.app.AIDecision
	f.app.HumanDecision = req.Decision
	f.app.FinalDecision = req.Decision
	f.app.ReviewStatus = applications.ReviewHumanVerified
	if override {
		f.app.ReviewStatus = applications.ReviewManualOverride
	}
	f.app.DecisionHistory = append(f.app.DecisionHistory, applications.AuditEntry{
		Actor:  req.ReviewerName,
		Action: "Changed decision to '" + string(req.Decision) + "'",
		Reason: req.OverrideReason,
	})

	return &backend.VerifyResult{Success: true, ReviewStatus: f.app.ReviewStatus, IsOverride: override}, nil
}

func (f *fakeBackend) LockDecision(ctx context.Context, id, reviewer string) (*backend.LockResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.locks++
	if f.lockErr != nil {
		return nil, f.lockErr
	}

	f.app.DecisionLocked = true
	f.app.LockedBy = reviewer
	if f.lockResult.EmailSent {
		f.app.EmailSent = true
		f.app.EmailStatus = applications.EmailSent
	}
	res := f.lockResult
	return &res, nil
}

func (f *fakeBackend) SendEmail(ctx context.Context, id, reviewer string) (*backend.EmailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.emails++
	if f.emailErr != nil {
		return nil, f.emailErr
	}

	res := backend.EmailResult{Success: true, Recipient: "applicant@example.com"}
	if len(f.emailResults) > 0 {
		res = f.emailResults[0]
		f.emailResults = f.emailResults[1:]
	}

	if res.Success {
		f.app.EmailSent = true
		f.app.EmailStatus = applications.EmailSent
		f.app.EmailError = ""
	} else {
		f.app.EmailStatus = applications.EmailFailed
		f.app.EmailError = res.Error
	}
	return &res, nil
}

func (f *fakeBackend) Comment(ctx context.Context, id, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, comment)
	f.app.Comment = comment
	return nil
}

func (f *fakeBackend) Navigate(ctx context.Context, id string, dir applications.Direction) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, dir)
	if f.navigateErr != nil {
		return "", false, f.navigateErr
	}
	if f.neighbour == "" {
		return "", false, nil
	}
	return f.neighbour, true, nil
}

func (f *fakeBackend) Retry(ctx context.Context, id string) (*backend.RetryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.app.Status != applications.StatusFailed {
		return nil, &backend.StatusError{StatusCode: 400, Detail: "Application is not in FAILED state"}
	}
	f.retries++
	f.app.Status = applications.StatusProcessing
	return &backend.RetryResult{Success: true, Status: applications.StatusProcessing}, nil
}

func (f *fakeBackend) set(fn func(app *applications.Application)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.app)
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBackend) verifyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verifies)
}

type recorder struct {
	mu      sync.Mutex
	actions []review.Action
}

func (r *recorder) Record(ctx context.Context, a review.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
}

func (r *recorder) kinds() []review.ActionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []review.ActionKind
	for _, a := range r.actions {
		out = append(out, a.Kind)
	}
	return out
}

var errDown = errors.New("connection refused")

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mount(t *testing.T, fb *fakeBackend, rec review.Recorder) (*review.Session, *testingclock.FakeClock) {
	t.Helper()
	clk := testingclock.NewFakeClock(time.Now())

	s, err := review.Mount(context.Background(), "APP-1", "Credit Officer", review.Config{
		PollInterval: 3 * time.Second,
		NoticeTTL:    5 * time.Second,
	}, review.Deps{
		Backend:  fb,
		Logger:   discard(),
		Clock:    clk,
		Recorder: rec,
		ViewID:   "view-1",
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(s.Close)
	return s, clk
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func reviewable(ai applications.Decision) applications.Application {
	return applications.Application{
		ID:         "APP-1",
		Status:     applications.StatusReviewRequired,
		AIDecision: ai,
	}
}
