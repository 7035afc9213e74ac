package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/internal/dashboard"
	"github.com/JaimeStill/creditdesk/pkg/lifecycle"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

const interval = 5 * time.Second

type fakeSource struct {
	mu       sync.Mutex
	apps     []applications.Summary
	stats    applications.Stats
	statsErr error
	limit    int
	calls    int
	// hold, when set, runs before the listing of the given call returns.
	hold func(call int)

	deleted   []string
	deleteErr error
	export    string
	exportErr error
}

func (f *fakeSource) Applications(_ context.Context, limit int) ([]applications.Summary, error) {
	f.mu.Lock()
	f.limit = limit
	f.calls++
	call, hold := f.calls, f.hold
	apps := append([]applications.Summary(nil), f.apps...)
	f.mu.Unlock()

	if hold != nil {
		hold(call)
	}
	return apps, nil
}

func (f *fakeSource) Stats(context.Context) (*applications.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	s := f.stats
	return &s, nil
}

func (f *fakeSource) Status(_ context.Context, id string) (*applications.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.ID == id {
			return &applications.StatusReport{ApplicationID: id, Status: applications.StatusAnalyzing}, nil
		}
	}
	return nil, &backend.StatusError{StatusCode: http.StatusNotFound, Detail: "Application not found"}
}

func (f *fakeSource) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	kept := f.apps[:0:0]
	for _, a := range f.apps {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	f.apps = kept
	return nil
}

func (f *fakeSource) Analytics(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"approval_rate":50}`), nil
}

func (f *fakeSource) Export(_ context.Context, w io.Writer) (int64, error) {
	f.mu.Lock()
	body, err := f.export, f.exportErr
	f.mu.Unlock()

	n, _ := io.WriteString(w, body)
	return int64(n), err
}

func (f *fakeSource) set(fn func(*fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSystem(src *fakeSource) (*dashboard.System, *testingclock.FakeClock) {
	clk := testingclock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	sys := dashboard.New(src, dashboard.Config{Interval: interval, Limit: 25, Clock: clk}, discard())
	return sys, clk
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

func TestRefresh(t *testing.T) {
	src := &fakeSource{
		apps:  []applications.Summary{{ID: "app-1", Score: 72}, {ID: "app-2", Score: 40}},
		stats: applications.Stats{Total: 2, AvgProcessingTime: 12.5},
	}
	sys, clk := newSystem(src)

	if got := sys.Overview(); got.RefreshedAt != nil || got.Applications == nil {
		t.Fatalf("initial overview: got %+v", got)
	}

	overview, err := sys.Refresh(t.Context())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(overview.Applications) != 2 || overview.Stats.Total != 2 {
		t.Errorf("overview: got %+v", overview)
	}
	if overview.RefreshedAt == nil || !overview.RefreshedAt.Equal(clk.Now()) {
		t.Errorf("refreshed_at: got %v", overview.RefreshedAt)
	}
	if src.limit != 25 {
		t.Errorf("limit: got %d, want 25", src.limit)
	}
}

func TestRefreshDropsOlderFetch(t *testing.T) {
	src := &fakeSource{apps: []applications.Summary{{ID: "old"}}}
	sys, _ := newSystem(src)

	release := make(chan struct{})
	listed := make(chan struct{})
	src.set(func(f *fakeSource) {
		f.hold = func(call int) {
			if call == 1 {
				close(listed)
				<-release
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := sys.Refresh(t.Context())
		done <- err
	}()
	<-listed

	src.set(func(f *fakeSource) { f.apps = []applications.Summary{{ID: "new"}} })
	if _, err := sys.Refresh(t.Context()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Refresh: %v", err)
	}

	got := sys.Overview().Applications
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("applications: got %+v, want the newer fetch", got)
	}
}

func TestRefreshFailureKeepsLastGood(t *testing.T) {
	src := &fakeSource{
		apps:  []applications.Summary{{ID: "app-1"}},
		stats: applications.Stats{Total: 1},
	}
	sys, _ := newSystem(src)

	good, err := sys.Refresh(t.Context())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	src.set(func(f *fakeSource) {
		f.apps = nil
		f.statsErr = backend.ErrUnavailable
	})

	got, err := sys.Refresh(t.Context())
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if len(got.Applications) != 1 || got.Stats.Total != 1 || !got.RefreshedAt.Equal(*good.RefreshedAt) {
		t.Errorf("last good overview lost: got %+v", got)
	}
	if got.LastError == "" {
		t.Error("last_error should be set")
	}

	src.set(func(f *fakeSource) { f.statsErr = nil })
	if got, err := sys.Refresh(t.Context()); err != nil || got.LastError != "" {
		t.Errorf("recovery: got %+v, %v", got, err)
	}
}

func TestStartPollsUntilShutdown(t *testing.T) {
	src := &fakeSource{stats: applications.Stats{Total: 3}}
	sys, clk := newSystem(src)

	lc := lifecycle.New()
	sys.Start(lc)
	lc.WaitForStartup()

	if got := src.callCount(); got != 1 {
		t.Fatalf("initial refresh: got %d calls, want 1", got)
	}

	clk.Step(interval)
	eventually(t, func() bool { return src.callCount() == 2 })

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	clk.Step(interval)
	time.Sleep(20 * time.Millisecond)
	if got := src.callCount(); got != 2 {
		t.Errorf("calls after shutdown: got %d, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	src := &fakeSource{
		apps:  []applications.Summary{{ID: "app-9"}},
		stats: applications.Stats{Total: 1},
	}
	sys, _ := newSystem(src)

	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dashboard/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	var overview dashboard.Overview
	if err := json.NewDecoder(rec.Body).Decode(&overview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(overview.Applications) != 1 || overview.Applications[0].ID != "app-9" {
		t.Errorf("overview: got %+v", overview)
	}

	src.set(func(f *fakeSource) { f.statsErr = backend.ErrUnavailable })
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dashboard/refresh", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("failed refresh: got %d, want 502", rec.Code)
	}
}
