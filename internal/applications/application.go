// Package applications defines the loan application records exchanged with the
// analysis backend and the derivation rules a review console applies to them.
package applications

import (
	"encoding/json"
	"strings"
)

// Status is the analysis pipeline state of an application.
type Status string

const (
	StatusQueued         Status = "Queued"
	StatusProcessing     Status = "Processing"
	StatusAnalyzing      Status = "Analyzing"
	StatusApproved       Status = "Approved"
	StatusRejected       Status = "Rejected"
	StatusReviewRequired Status = "Review Required"
	StatusFailed         Status = "Failed"
)

// Pending reports whether backend analysis is still in flight.
func (s Status) Pending() bool {
	return s == StatusProcessing || s == StatusAnalyzing
}

// Decision is an underwriting outcome, proposed by the AI or chosen by a reviewer.
type Decision string

const (
	DecisionApproved       Decision = "Approved"
	DecisionRejected       Decision = "Rejected"
	DecisionReviewRequired Decision = "Review Required"
)

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionReviewRequired:
		return true
	}
	return false
}

// ParseDecision resolves a decision case-insensitively. Underscores and dashes
// are accepted in place of spaces ("review_required").
func ParseDecision(s string) (Decision, bool) {
	normalized := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s))
	for _, d := range []Decision{DecisionApproved, DecisionRejected, DecisionReviewRequired} {
		if strings.EqualFold(normalized, string(d)) {
			return d, true
		}
	}
	return "", false
}

// RiskLevel is the coarse risk band of an application.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ReviewStatus classifies how the current decision was reached.
type ReviewStatus string

const (
	ReviewAIAnalysis     ReviewStatus = "AI_Analysis"
	ReviewHumanVerified  ReviewStatus = "Human_Verified"
	ReviewManualOverride ReviewStatus = "Manual_Override"

	reviewAIPending ReviewStatus = "AI_Pending"
)

// EmailStatus is the delivery state of the decision notification.
type EmailStatus string

const (
	EmailUnsent EmailStatus = "unsent"
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// EmailMode is how the backend delivers decision notifications after a lock.
type EmailMode string

const (
	EmailModeAuto   EmailMode = "auto"
	EmailModeManual EmailMode = "manual"
)

// AuditEntry is a single decision_history record appended by the backend.
type AuditEntry struct {
	Timestamp string  `json:"timestamp"`
	Actor     string  `json:"actor"`
	Action    string  `json:"action"`
	Details   *string `json:"details,omitempty"`
	Reason    *string `json:"reason,omitempty"`
}

// Application is the full application record returned by the backend.
// A review view holds one as its snapshot and replaces it wholesale on refresh.
type Application struct {
	ID              string          `json:"id"`
	Name            string          `json:"name,omitempty"`
	IC              string          `json:"ic,omitempty"`
	LoanType        string          `json:"loan_type,omitempty"`
	RequestedAmount *float64        `json:"requested_amount,omitempty"`
	Status          Status          `json:"status"`
	RiskScore       *int            `json:"risk_score,omitempty"`
	RiskLevel       RiskLevel       `json:"risk_level,omitempty"`
	AIDecision      Decision        `json:"ai_decision,omitempty"`
	HumanDecision   Decision        `json:"human_decision,omitempty"`
	FinalDecision   Decision        `json:"final_decision,omitempty"`
	ReviewStatus    ReviewStatus    `json:"review_status,omitempty"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      string          `json:"reviewed_at,omitempty"`
	OverrideReason  string          `json:"override_reason,omitempty"`
	DecisionLocked  bool            `json:"decision_locked"`
	LockedBy        string          `json:"decision_locked_by,omitempty"`
	LockedAt        string          `json:"decision_locked_at,omitempty"`
	EmailSent       bool            `json:"email_sent"`
	EmailStatus     EmailStatus     `json:"email_status,omitempty"`
	EmailError      string          `json:"email_error,omitempty"`
	Comment         string          `json:"comment,omitempty"`
	DecisionHistory []AuditEntry    `json:"decision_history"`
	CreatedAt       string          `json:"created_at,omitempty"`
	AnalysisResult  json.RawMessage `json:"analysis_result,omitempty"`
}

// analysis is the subset of analysis_result the console derives fallbacks from.
type analysis struct {
	RiskScore     *int      `json:"risk_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
	FinalDecision Decision  `json:"final_decision"`
}

func (a *Application) analysis() analysis {
	var out analysis
	if len(a.AnalysisResult) == 0 {
		return out
	}
	_ = json.Unmarshal(a.AnalysisResult, &out)
	return out
}

// Score returns the risk score, falling back to the analysis result and then
// to DefaultScore.
func (a *Application) Score() int {
	if a.RiskScore != nil {
		return *a.RiskScore
	}
	if s := a.analysis().RiskScore; s != nil {
		return *s
	}
	return DefaultScore
}

// EffectiveAIDecision is the decision a reviewer's choice is compared against
// to detect an override.
func (a *Application) EffectiveAIDecision() Decision {
	if a.AIDecision != "" {
		return a.AIDecision
	}
	if d := a.analysis().FinalDecision; d.Valid() {
		return d
	}
	return DecisionForScore(a.Score())
}

// EffectiveRiskLevel returns the backend risk level or the score-derived band.
func (a *Application) EffectiveRiskLevel() RiskLevel {
	if a.RiskLevel != "" {
		return a.RiskLevel
	}
	if l := a.analysis().RiskLevel; l != "" {
		return l
	}
	return RiskLevelForScore(a.Score())
}

// EffectiveReviewStatus returns the backend review status when present.
// The comparison of human and AI decisions is only a display fallback for
// records that carry no review status.
func (a *Application) EffectiveReviewStatus() ReviewStatus {
	switch a.ReviewStatus {
	case "":
	case reviewAIPending:
		return ReviewAIAnalysis
	default:
		return a.ReviewStatus
	}

	switch {
	case a.HumanDecision == "":
		return ReviewAIAnalysis
	case a.HumanDecision == a.EffectiveAIDecision():
		return ReviewHumanVerified
	default:
		return ReviewManualOverride
	}
}

// Decidable reports whether a reviewer may submit a decision right now.
func (a *Application) Decidable() bool {
	return !a.DecisionLocked && !a.Status.Pending()
}

// LockState is the position of an application in the lock and notify flow.
type LockState string

const (
	Unlocked          LockState = "unlocked"
	LockedPendingSend LockState = "pending_send"
	LockedSent        LockState = "sent"
	LockedFailed      LockState = "failed"
)

// LockState derives the lock and notification state from the record.
func (a *Application) LockState() LockState {
	if !a.DecisionLocked {
		return Unlocked
	}
	switch a.EmailStatus {
	case EmailFailed:
		return LockedFailed
	case EmailSent:
		return LockedSent
	}
	if a.EmailSent {
		return LockedSent
	}
	return LockedPendingSend
}

// Summary is a row of the application list.
type Summary struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Type          string       `json:"type"`
	Amount        string       `json:"amount"`
	Score         int          `json:"score"`
	Status        string       `json:"status"`
	Date          string       `json:"date"`
	ReviewStatus  ReviewStatus `json:"review_status,omitempty"`
	AIDecision    Decision     `json:"ai_decision,omitempty"`
	HumanDecision Decision     `json:"human_decision,omitempty"`
}

// Stats aggregates queue-wide counters for the dashboard.
type Stats struct {
	Total             int     `json:"total"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
}

// StatusReport is the lightweight status payload used for cheap polling.
type StatusReport struct {
	ApplicationID string       `json:"application_id"`
	Status        Status       `json:"status"`
	RiskScore     int          `json:"risk_score"`
	RiskLevel     RiskLevel    `json:"risk_level,omitempty"`
	FinalDecision string       `json:"final_decision"`
	ReviewStatus  ReviewStatus `json:"review_status,omitempty"`
}

// Direction selects the neighbouring application in queue order.
type Direction string

const (
	Previous Direction = "previous"
	Next     Direction = "next"
)

// ParseDirection validates a navigation direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Previous:
		return Previous, true
	case Next:
		return Next, true
	}
	return "", false
}

// DirectionForKey maps the arrow key bindings onto navigation directions.
func DirectionForKey(key string) (Direction, bool) {
	switch key {
	case "ArrowLeft":
		return Previous, true
	case "ArrowRight":
		return Next, true
	}
	return "", false
}
