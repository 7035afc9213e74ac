package applications

// Score bands used when the backend has not supplied an explicit decision or
// risk level. Lower bounds are inclusive.
const (
	ApproveThreshold = 80
	ReviewThreshold  = 60

	// DefaultScore is assumed when no score is available at all.
	DefaultScore = 50
)

// DecisionForScore maps a risk score onto the fallback decision band.
func DecisionForScore(score int) Decision {
	switch {
	case score >= ApproveThreshold:
		return DecisionApproved
	case score >= ReviewThreshold:
		return DecisionReviewRequired
	default:
		return DecisionRejected
	}
}

// RiskLevelForScore maps a risk score onto the fallback risk band.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= ApproveThreshold:
		return RiskLow
	case score >= ReviewThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}
