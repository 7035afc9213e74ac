package backend

import "github.com/JaimeStill/creditdesk/internal/applications"

// VerifyRequest records a reviewer decision. OverrideReason is serialized as
// null when the decision confirms the AI recommendation.
type VerifyRequest struct {
	Decision       applications.Decision `json:"decision"`
	ReviewerName   string                `json:"reviewer_name"`
	OverrideReason *string               `json:"override_reason"`
}

// VerifyResult is the backend acknowledgement of a recorded decision.
type VerifyResult struct {
	Success         bool                      `json:"success"`
	ReviewStatus    applications.ReviewStatus `json:"review_status"`
	IsOverride      bool                      `json:"is_override"`
	DecisionHistory []applications.AuditEntry `json:"decision_history"`
}

// LockResult reports the outcome of an irreversible decision lock.
type LockResult struct {
	Success   bool                   `json:"success"`
	EmailSent bool                   `json:"email_sent"`
	EmailMode applications.EmailMode `json:"email_mode"`
	Message   string                 `json:"message,omitempty"`
}

// EmailResult is the typed outcome of a manual notification send. A false
// Success is a backend-reported failure, distinct from a transport error.
type EmailResult struct {
	Success   bool   `json:"success"`
	Recipient string `json:"recipient,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RetryResult acknowledges a re-queued analysis.
type RetryResult struct {
	Success bool                `json:"success"`
	Status  applications.Status `json:"status"`
	Message string              `json:"message,omitempty"`
}

// UploadFile is one document of a new application.
type UploadFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult is the backend response to a new application upload.
type UploadResult struct {
	Success       bool   `json:"success"`
	ApplicationID string `json:"application_id"`
	Message       string `json:"message"`
}

// BatchResult is the backend response to a batch upload. ProcessedCount is
// the number of applications queued for analysis.
type BatchResult struct {
	Success        bool   `json:"success"`
	ProcessedCount int    `json:"processed_count"`
	Message        string `json:"message"`
}

// Answer is a copilot response grounded in the application's documents.
type Answer struct {
	Answer  string `json:"answer"`
	Sources []any  `json:"sources"`
}

type reviewerBody struct {
	ReviewerName string `json:"reviewer_name"`
}

type commentBody struct {
	Comment string `json:"comment"`
}

type navigateResult struct {
	ApplicationID *string `json:"application_id"`
}

type askBody struct {
	Question      string `json:"question"`
	ApplicationID string `json:"application_id"`
}

type errorBody struct {
	Detail any `json:"detail"`
}
