package domain

import "math"

// RawReturnPeriodRow is a threshold row as served by the upstream analysis
// service. All discharge values are in CMS.
type RawReturnPeriodRow struct {
	FeatureID       float64 `json:"feature_id"`
	ReturnPeriod2   float64 `json:"return_period_2"`
	ReturnPeriod5   float64 `json:"return_period_5"`
	ReturnPeriod10  float64 `json:"return_period_10"`
	ReturnPeriod25  float64 `json:"return_period_25"`
	ReturnPeriod50  float64 `json:"return_period_50"`
	ReturnPeriod100 float64 `json:"return_period_100"`
}

// ReturnPeriodThresholds holds recurrence-interval discharge thresholds in
// CFS. Monotonicity (RP2 ≤ RP5 ≤ ... ≤ RP100) is an upstream domain
// assumption, relied on by ComputeRisk but deliberately not validated here.
type ReturnPeriodThresholds struct {
	RP2   float64 `json:"rp2"`
	RP5   float64 `json:"rp5"`
	RP10  float64 `json:"rp10"`
	RP25  float64 `json:"rp25"`
	RP50  float64 `json:"rp50"`
	RP100 float64 `json:"rp100"`
}

// ReachReturnPeriods associates a threshold set with its reach.
type ReachReturnPeriods struct {
	ReachID    ReachID                `json:"reachId"`
	Thresholds ReturnPeriodThresholds `json:"thresholds"`
}

// NormalizeReturnPeriodRows converts raw CMS threshold rows to CFS records
// keyed by reach. Rows without a finite feature_id are dropped; each of the
// six fields converts independently with no cross-field checks.
func NormalizeReturnPeriodRows(rows []RawReturnPeriodRow) []ReachReturnPeriods {
	out := make([]ReachReturnPeriods, 0, len(rows))
	for _, row := range rows {
		if math.IsNaN(row.FeatureID) || math.IsInf(row.FeatureID, 0) {
			continue
		}
		out = append(out, ReachReturnPeriods{
			ReachID: NewReachID(row.FeatureID),
			Thresholds: ReturnPeriodThresholds{
				RP2:   CmsToCfs(row.ReturnPeriod2),
				RP5:   CmsToCfs(row.ReturnPeriod5),
				RP10:  CmsToCfs(row.ReturnPeriod10),
				RP25:  CmsToCfs(row.ReturnPeriod25),
				RP50:  CmsToCfs(row.ReturnPeriod50),
				RP100: CmsToCfs(row.ReturnPeriod100),
			},
		})
	}
	return out
}
