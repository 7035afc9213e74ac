package applications

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy indicates a policy value outside its allowed range.
var ErrInvalidPolicy = errors.New("invalid policy")

// Policy is the risk policy the backend applies when scoring applications.
// Percentages are 0 to 100; loan ceilings are in ringgit.
type Policy struct {
	DSRThreshold         float64 `json:"dsr_threshold"`
	MinSavingsRate       float64 `json:"min_savings_rate"`
	ConfidenceThreshold  float64 `json:"confidence_threshold"`
	AutoRejectGambling   bool    `json:"auto_reject_gambling"`
	AutoRejectHighDSR    bool    `json:"auto_reject_high_dsr"`
	MaxLoanMicroBusiness float64 `json:"max_loan_micro_business"`
	MaxLoanPersonal      float64 `json:"max_loan_personal"`
	MaxLoanHousing       float64 `json:"max_loan_housing"`
	MaxLoanCar           float64 `json:"max_loan_car"`
	UpdatedAt            string  `json:"updated_at,omitempty"`
	UpdatedBy            string  `json:"updated_by,omitempty"`
}

// Validate checks every threshold and ceiling.
func (p *Policy) Validate() error {
	for name, v := range map[string]float64{
		"dsr_threshold":        p.DSRThreshold,
		"min_savings_rate":     p.MinSavingsRate,
		"confidence_threshold": p.ConfidenceThreshold,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s must be between 0 and 100, got %g", ErrInvalidPolicy, name, v)
		}
	}
	for name, v := range map[string]float64{
		"max_loan_micro_business": p.MaxLoanMicroBusiness,
		"max_loan_personal":       p.MaxLoanPersonal,
		"max_loan_housing":        p.MaxLoanHousing,
		"max_loan_car":            p.MaxLoanCar,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidPolicy, name, v)
		}
	}
	return nil
}

// PolicyAudit is one backend audit log line about a policy or record change.
type PolicyAudit struct {
	ID            int64  `json:"id"`
	Timestamp     string `json:"timestamp"`
	User          string `json:"user"`
	Action        string `json:"action"`
	Details       string `json:"details"`
	ApplicationID string `json:"application_id,omitempty"`
	OldValue      string `json:"old_value,omitempty"`
	NewValue      string `json:"new_value,omitempty"`
}

// Settings is the current policy with its audit trail.
type Settings struct {
	Policy    *Policy       `json:"policy"`
	AuditLogs []PolicyAudit `json:"audit_logs"`
}
