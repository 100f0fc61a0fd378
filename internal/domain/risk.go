package domain

// RiskLevel is the discrete flow-risk category shown to users. Derived, never
// stored authoritatively; recompute whenever flow or thresholds change.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "normal"
	RiskElevated RiskLevel = "elevated"
	RiskHigh     RiskLevel = "high"
	RiskFlood    RiskLevel = "flood"
)

// Ordinal returns the severity rank of a level, normal=0 through flood=3.
func (r RiskLevel) Ordinal() int {
	switch r {
	case RiskElevated:
		return 1
	case RiskHigh:
		return 2
	case RiskFlood:
		return 3
	default:
		return 0
	}
}

// ComputeRisk classifies a current flow against return-period thresholds:
// flood at or above the 50-year flow, high at or above the 25-year, elevated
// at or above the 2-year, otherwise normal.
//
// Only RP2, RP25, and RP50 gate the four levels; RP5, RP10, and RP100 are
// carried for display but never consulted. Downstream severity styling maps
// onto exactly this ladder, so the gates must not change.
func ComputeRisk(currentFlowCfs float64, thresholds ReturnPeriodThresholds) RiskLevel {
	switch {
	case currentFlowCfs >= thresholds.RP50:
		return RiskFlood
	case currentFlowCfs >= thresholds.RP25:
		return RiskHigh
	case currentFlowCfs >= thresholds.RP2:
		return RiskElevated
	default:
		return RiskNormal
	}
}
