package applications_test

import (
	"encoding/json"
	"testing"

	"github.com/JaimeStill/creditdesk/internal/applications"
)

func ptr[T any](v T) *T { return &v }

func TestScoreBands(t *testing.T) {
	tests := []struct {
		score    int
		decision applications.Decision
		level    applications.RiskLevel
	}{
		{100, applications.DecisionApproved, applications.RiskLow},
		{80, applications.DecisionApproved, applications.RiskLow},
		{79, applications.DecisionReviewRequired, applications.RiskMedium},
		{60, applications.DecisionReviewRequired, applications.RiskMedium},
		{59, applications.DecisionRejected, applications.RiskHigh},
		{0, applications.DecisionRejected, applications.RiskHigh},
	}

	for _, tt := range tests {
		if got := applications.DecisionForScore(tt.score); got != tt.decision {
			t.Errorf("DecisionForScore(%d) = %q, want %q", tt.score, got, tt.decision)
		}
		if got := applications.RiskLevelForScore(tt.score); got != tt.level {
			t.Errorf("RiskLevelForScore(%d) = %q, want %q", tt.score, got, tt.level)
		}
	}
}

func TestEffectiveAIDecision(t *testing.T) {
	tests := []struct {
		name string
		app  applications.Application
		want applications.Decision
	}{
		{
			name: "explicit ai decision wins",
			app: applications.Application{
				AIDecision: applications.DecisionRejected,
				RiskScore:  ptr(95),
			},
			want: applications.DecisionRejected,
		},
		{
			name: "analysis final decision",
			app: applications.Application{
				AnalysisResult: json.RawMessage(`{"final_decision":"Review Required","risk_score":10}`),
			},
			want: applications.DecisionReviewRequired,
		},
		{
			name: "top-level score",
			app:  applications.Application{RiskScore: ptr(80)},
			want: applications.DecisionApproved,
		},
		{
			name: "analysis score",
			app: applications.Application{
				AnalysisResult: json.RawMessage(`{"risk_score":61}`),
			},
			want: applications.DecisionReviewRequired,
		},
		{
			name: "default score",
			app:  applications.Application{},
			want: applications.DecisionRejected,
		},
		{
			name: "malformed analysis ignored",
			app: applications.Application{
				RiskScore:      ptr(85),
				AnalysisResult: json.RawMessage(`"not an object"`),
			},
			want: applications.DecisionApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.EffectiveAIDecision(); got != tt.want {
				t.Errorf("EffectiveAIDecision() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEffectiveReviewStatus(t *testing.T) {
	tests := []struct {
		name string
		app  applications.Application
		want applications.ReviewStatus
	}{
		{
			name: "backend value is authoritative",
			app: applications.Application{
				ReviewStatus:  applications.ReviewHumanVerified,
				AIDecision:    applications.DecisionApproved,
				HumanDecision: applications.DecisionRejected,
			},
			want: applications.ReviewHumanVerified,
		},
		{
			name: "legacy pending value",
			app:  applications.Application{ReviewStatus: "AI_Pending"},
			want: applications.ReviewAIAnalysis,
		},
		{
			name: "no human decision",
			app:  applications.Application{AIDecision: applications.DecisionApproved},
			want: applications.ReviewAIAnalysis,
		},
		{
			name: "matching human decision",
			app: applications.Application{
				AIDecision:    applications.DecisionApproved,
				HumanDecision: applications.DecisionApproved,
			},
			want: applications.ReviewHumanVerified,
		},
		{
			name: "differing human decision",
			app: applications.Application{
				AIDecision:    applications.DecisionRejected,
				HumanDecision: applications.DecisionApproved,
			},
			want: applications.ReviewManualOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.EffectiveReviewStatus(); got != tt.want {
				t.Errorf("EffectiveReviewStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLockState(t *testing.T) {
	tests := []struct {
		name string
		app  applications.Application
		want applications.LockState
	}{
		{"unlocked", applications.Application{EmailSent: true}, applications.Unlocked},
		{"pending", applications.Application{DecisionLocked: true}, applications.LockedPendingSend},
		{"sent flag", applications.Application{DecisionLocked: true, EmailSent: true}, applications.LockedSent},
		{"sent status", applications.Application{DecisionLocked: true, EmailStatus: applications.EmailSent}, applications.LockedSent},
		{"failed", applications.Application{DecisionLocked: true, EmailStatus: applications.EmailFailed}, applications.LockedFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.LockState(); got != tt.want {
				t.Errorf("LockState() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecidable(t *testing.T) {
	tests := []struct {
		name string
		app  applications.Application
		want bool
	}{
		{"ready", applications.Application{Status: applications.StatusReviewRequired}, true},
		{"locked", applications.Application{Status: applications.StatusApproved, DecisionLocked: true}, false},
		{"processing", applications.Application{Status: applications.StatusProcessing}, false},
		{"analyzing", applications.Application{Status: applications.StatusAnalyzing}, false},
		{"failed", applications.Application{Status: applications.StatusFailed}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.Decidable(); got != tt.want {
				t.Errorf("Decidable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in   string
		want applications.Decision
		ok   bool
	}{
		{"approved", applications.DecisionApproved, true},
		{" Rejected ", applications.DecisionRejected, true},
		{"review_required", applications.DecisionReviewRequired, true},
		{"Review-Required", applications.DecisionReviewRequired, true},
		{"maybe", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := applications.ParseDecision(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDecision(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
