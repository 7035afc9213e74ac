package receipts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/receipts"
	"github.com/JaimeStill/creditdesk/internal/review"
	"github.com/JaimeStill/creditdesk/pkg/routes"
	"github.com/JaimeStill/creditdesk/pkg/storage"
)

type memStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failing bool
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (m *memStore) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	if m.failing {
		return errors.New("storage offline")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

func (m *memStore) Download(_ context.Context, key string) (*storage.BlobStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BlobStream{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentType:   "application/json",
		ContentLength: int64(len(data)),
	}, nil
}

func (m *memStore) List(_ context.Context, prefix, _ string, _ int32) (*storage.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &storage.ListResult{Blobs: []storage.BlobMeta{}}
	for key, data := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			result.Blobs = append(result.Blobs, storage.BlobMeta{Key: key, ContentLength: int64(len(data))})
		}
	}
	sort.Slice(result.Blobs, func(i, j int) bool { return result.Blobs[i].Key < result.Blobs[j].Key })
	return result, nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	return keys
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lockAction() review.Action {
	return review.Action{
		Kind:          review.ActionLock,
		ApplicationID: "app-7",
		Reviewer:      "Dana",
		Decision:      applications.DecisionApproved,
		EmailMode:     applications.EmailModeAuto,
		Application: &applications.Application{
			ID:             "app-7",
			FinalDecision:  applications.DecisionRejected,
			DecisionLocked: true,
			LockedBy:       "Dana Officer",
			LockedAt:       "2026-03-01T10:00:00Z",
			DecisionHistory: []applications.AuditEntry{
				{Timestamp: "2026-03-01T09:00:00Z", Actor: "AI", Action: "analysis"},
				{Timestamp: "2026-03-01T10:00:00Z", Actor: "Dana Officer", Action: "lock"},
			},
		},
	}
}

func TestRecordArchivesSuccessfulLock(t *testing.T) {
	store := newMemStore()
	archive := receipts.New(store, discard(), 100)

	archive.Record(t.Context(), lockAction())

	keys := store.keys()
	if len(keys) != 1 {
		t.Fatalf("blobs: got %v, want one receipt", keys)
	}
	if !strings.HasPrefix(keys[0], "receipts/app-7/") || !strings.HasSuffix(keys[0], ".json") {
		t.Errorf("key: got %q", keys[0])
	}

	var r receipts.Receipt
	if err := json.Unmarshal(store.blobs[keys[0]], &r); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if r.Decision != applications.DecisionRejected || r.Reviewer != "Dana Officer" {
		t.Errorf("backend snapshot must win: got %+v", r)
	}
	if r.LockedAt != "2026-03-01T10:00:00Z" || r.EmailMode != applications.EmailModeAuto || len(r.History) != 2 {
		t.Errorf("receipt: got %+v", r)
	}
}

func TestRecordIgnoresOtherActions(t *testing.T) {
	failed := lockAction()
	failed.Err = errors.New("backend rejected lock")

	tests := []struct {
		name   string
		action review.Action
	}{
		{"failed lock", failed},
		{"decision", review.Action{Kind: review.ActionDecision, ApplicationID: "app-7"}},
		{"email", review.Action{Kind: review.ActionEmail, ApplicationID: "app-7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			receipts.New(store, discard(), 100).Record(t.Context(), tt.action)
			if keys := store.keys(); len(keys) != 0 {
				t.Errorf("unexpected receipts: %v", keys)
			}
		})
	}
}

func TestRecordSurvivesStorageFailure(t *testing.T) {
	store := newMemStore()
	store.failing = true

	receipts.New(store, discard(), 100).Record(t.Context(), lockAction())

	if keys := store.keys(); len(keys) != 0 {
		t.Errorf("unexpected receipts: %v", keys)
	}
}

func TestFromActionWithoutSnapshot(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	action := lockAction()
	action.Application = nil

	r := receipts.FromAction(action, now)

	if r.Decision != applications.DecisionApproved || r.Reviewer != "Dana" {
		t.Errorf("action values: got %+v", r)
	}
	if r.LockedAt != "2026-04-02T08:30:00Z" {
		t.Errorf("locked_at: got %q", r.LockedAt)
	}
	if r.History == nil {
		t.Error("history must encode as an empty list")
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{"app-1", "receipts/app-1/", false},
		{"", "", true},
		{"a/b", "", true},
		{"..", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := receipts.Prefix(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	store := newMemStore()
	archive := receipts.New(store, discard(), 100)
	if _, err := archive.Archive(t.Context(), receipts.Receipt{
		ApplicationID: "app-7",
		Decision:      applications.DecisionApproved,
		ArchivedAt:    time.Unix(0, 42),
	}); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	mux := http.NewServeMux()
	routes.Register(mux, archive.Handler().Routes())

	tests := []struct {
		name string
		path string
		want int
	}{
		{"list", "/receipts/app-7", http.StatusOK},
		{"bad max results", "/receipts/app-7?max_results=0", http.StatusBadRequest},
		{"download", "/receipts/app-7/42.json", http.StatusOK},
		{"download missing", "/receipts/app-7/43.json", http.StatusNotFound},
		{"download wrong extension", "/receipts/app-7/42.pdf", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/receipts/app-7", nil))
	var list storage.ListResult
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Blobs) != 1 || list.Blobs[0].Key != "receipts/app-7/42.json" {
		t.Errorf("list: got %+v", list)
	}
}
