package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/backend"
)

// analysisBackend is an in-memory stand-in for the analysis service holding a
// single application.
type analysisBackend struct {
	mu        sync.Mutex
	app       applications.Application
	emailMode applications.EmailMode
	verified  []backend.VerifyRequest
	emails    int
	deleted   []string
	batches   []string
}

func newAnalysisBackend(t *testing.T) (*analysisBackend, *httptest.Server) {
	t.Helper()
	score := 82
	b := &analysisBackend{
		app: applications.Application{
			ID:         "APP-1",
			Name:       "Nur Aisyah",
			Status:     applications.StatusApproved,
			RiskScore:  &score,
			AIDecision: applications.DecisionApproved,
		},
		emailMode: applications.EmailModeManual,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/application/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if r.PathValue("id") != b.app.ID {
			http.Error(w, `{"detail":"Application not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(b.app)
	})
	mux.HandleFunc("POST /api/application/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		var req backend.VerifyRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.verified = append(b.verified, req)
		b.app.HumanDecision = req.Decision
		b.app.ReviewStatus = applications.ReviewHumanVerified
		if req.OverrideReason != nil {
			b.app.ReviewStatus = applications.ReviewManualOverride
			b.app.OverrideReason = *req.OverrideReason
		}
		json.NewEncoder(w).Encode(backend.VerifyResult{Success: true, ReviewStatus: b.app.ReviewStatus})
	})
	mux.HandleFunc("POST /api/application/{id}/lock-decision", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.app.DecisionLocked = true
		b.app.LockedBy = "Credit Officer"
		json.NewEncoder(w).Encode(backend.LockResult{Success: true, EmailMode: b.emailMode})
	})
	mux.HandleFunc("POST /api/application/{id}/send-email", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.emails++
		b.app.EmailSent = true
		b.app.EmailStatus = applications.EmailSent
		json.NewEncoder(w).Encode(backend.EmailResult{Success: true, Recipient: "nur@example.com"})
	})
	mux.HandleFunc("GET /api/application/{id}/navigate", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("direction") == "next" {
			w.Write([]byte(`{"application_id":"APP-2"}`))
			return
		}
		w.Write([]byte(`{"application_id":null}`))
	})
	mux.HandleFunc("GET /api/applications/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":12,"avg_processing_time":4.5}`))
	})
	mux.HandleFunc("GET /api/applications", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"APP-1","name":"Nur Aisyah","type":"Personal","amount":"RM 20,000","score":82,"status":"Approved","date":"2026-10-01"}]`))
	})

	mux.HandleFunc("GET /api/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"application_id":"APP-1","status":"Analyzing","risk_score":0,"final_decision":""}`))
	})
	mux.HandleFunc("DELETE /api/application/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.deleted = append(b.deleted, r.PathValue("id"))
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("GET /api/settings", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"policy":{"dsr_threshold":60,"min_savings_rate":10,"confidence_threshold":75,"auto_reject_gambling":true,` +
			`"auto_reject_high_dsr":false,"max_loan_micro_business":50000,"max_loan_personal":100000,"max_loan_housing":1000000,` +
			`"max_loan_car":200000,"updated_by":"Admin"},"audit_logs":[]}`))
	})
	mux.HandleFunc("GET /api/export/applications", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("application_id,name\nAPP-1,Nur Aisyah\n"))
	})
	mux.HandleFunc("POST /api/upload/batch", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"detail":"file required"}`, http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.batches = append(b.batches, header.Filename)
		b.mu.Unlock()
		w.Write([]byte(`{"success":true,"processed_count":2,"message":"Batch processed"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--backend-url", srv.URL,
	}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDecideAgreeingDecision(t *testing.T) {
	b, srv := newAnalysisBackend(t)

	out, stderr, err := run(t, srv, "decide", "APP-1", "approved")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(b.verified) != 1 || b.verified[0].OverrideReason != nil {
		t.Fatalf("verify calls: %+v", b.verified)
	}
	if !strings.Contains(stderr, "--lock") {
		t.Errorf("expected lock hint, got %q", stderr)
	}
	if !strings.Contains(out, string(applications.ReviewHumanVerified)) {
		t.Errorf("state output missing review status:\n%s", out)
	}
}

func TestDecideOverrideRequiresReason(t *testing.T) {
	b, srv := newAnalysisBackend(t)

	if _, _, err := run(t, srv, "decide", "APP-1", "rejected"); err == nil {
		t.Fatal("expected an error without --reason")
	}
	if len(b.verified) != 0 {
		t.Fatalf("override must not reach the backend without a reason: %+v", b.verified)
	}

	if _, _, err := run(t, srv, "decide", "APP-1", "rejected", "--reason", "income not verifiable"); err != nil {
		t.Fatalf("decide with reason: %v", err)
	}
	if len(b.verified) != 1 || b.verified[0].OverrideReason == nil || *b.verified[0].OverrideReason != "income not verifiable" {
		t.Fatalf("verify calls: %+v", b.verified)
	}
}

func TestDecideLockAndNotify(t *testing.T) {
	b, srv := newAnalysisBackend(t)

	out, _, err := run(t, srv, "-o", "json", "decide", "APP-1", "approved", "--lock", "--send-email")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !b.app.DecisionLocked || b.emails != 1 {
		t.Fatalf("locked=%v emails=%d", b.app.DecisionLocked, b.emails)
	}

	var state struct {
		LockState applications.LockState `json:"lock_state"`
	}
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if state.LockState != applications.LockedSent {
		t.Errorf("lock state: got %s, want %s", state.LockState, applications.LockedSent)
	}
}

func TestDecideFlagValidation(t *testing.T) {
	_, srv := newAnalysisBackend(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown decision", []string{"decide", "APP-1", "maybe"}},
		{"email without lock", []string{"decide", "APP-1", "approved", "--send-email"}},
		{"missing application", []string{"decide", "APP-9", "approved"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := run(t, srv, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestNavigate(t *testing.T) {
	_, srv := newAnalysisBackend(t)

	out, _, err := run(t, srv, "next", "APP-1")
	if err != nil || strings.TrimSpace(out) != "APP-2" {
		t.Errorf("next: got %q, %v", out, err)
	}

	out, stderr, err := run(t, srv, "prev", "APP-1")
	if err != nil || out != "" || !strings.Contains(stderr, "no previous application") {
		t.Errorf("prev: got %q / %q, %v", out, stderr, err)
	}
}

func TestQueueCommands(t *testing.T) {
	_, srv := newAnalysisBackend(t)

	out, _, err := run(t, srv, "list")
	if err != nil || !strings.Contains(out, "Nur Aisyah") || !strings.Contains(out, "SCORE") {
		t.Errorf("list: got %q, %v", out, err)
	}

	out, _, err = run(t, srv, "-o", "yaml", "stats")
	if err != nil || !strings.Contains(out, "total: 12") {
		t.Errorf("stats: got %q, %v", out, err)
	}
}

func TestWatchReturnsWhenSettled(t *testing.T) {
	_, srv := newAnalysisBackend(t)

	out, _, err := run(t, srv, "watch", "APP-1")
	if err != nil || !strings.Contains(out, "Approved") {
		t.Errorf("watch: got %q, %v", out, err)
	}
}

func TestStatusCommand(t *testing.T) {
	_, srv := newAnalysisBackend(t)

	out, _, err := run(t, srv, "status", "APP-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Analyzing") {
		t.Errorf("output missing status:\n%s", out)
	}
}

func TestDeleteCommandNeedsConfirmation(t *testing.T) {
	b, srv := newAnalysisBackend(t)

	if _, _, err := run(t, srv, "delete", "APP-1"); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected a confirmation error, got %v", err)
	}
	if len(b.deleted) != 0 {
		t.Fatalf("nothing may be deleted without --yes: %v", b.deleted)
	}

	out, _, err := run(t, srv, "delete", "APP-1", "--yes")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(b.deleted) != 1 || b.deleted[0] != "APP-1" || !strings.Contains(out, "deleted APP-1") {
		t.Errorf("deleted %v, output %q", b.deleted, out)
	}
}

func TestSettingsCommand(t *testing.T) {
	_, srv := newAnalysisBackend(t)

	out, _, err := run(t, srv, "settings")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	for _, want := range []string{"60%", "RM 100000", "Admin"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExportCommand(t *testing.T) {
	_, srv := newAnalysisBackend(t)

	out, _, err := run(t, srv, "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != "application_id,name\nAPP-1,Nur Aisyah\n" {
		t.Errorf("stdout: got %q", out)
	}

	dir := t.TempDir()
	if _, _, err := run(t, srv, "export", "--file", dir); err != nil {
		t.Fatalf("export to dir: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "applications_export_*.csv"))
	if len(matches) != 1 {
		t.Errorf("dated export file: got %v", matches)
	}
}

func TestBatchCommand(t *testing.T) {
	b, srv := newAnalysisBackend(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "march.csv")
	os.WriteFile(good, []byte("applicant_name,loan_type\nA,Personal Loan\nB,Car Loan\n"), 0o644)
	out, _, err := run(t, srv, "batch", good)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(out, "2 of 2") || len(b.batches) != 1 || b.batches[0] != "march.csv" {
		t.Errorf("output %q, uploads %v", out, b.batches)
	}

	bad := filepath.Join(dir, "empty.csv")
	os.WriteFile(bad, []byte("applicant_name\n"), 0o644)
	if _, _, err := run(t, srv, "batch", bad); err == nil {
		t.Error("a manifest without rows must be rejected locally")
	}
	if len(b.batches) != 1 {
		t.Errorf("rejected batch reached the backend: %v", b.batches)
	}
}
