package domain

import (
	"fmt"
	"time"
)

// ReachID identifies a discrete river channel segment. It is a distinct type
// so reach identifiers cannot be confused with arbitrary strings; construct
// one with NewReachID at the adapter boundary.
type ReachID string

// NewReachID converts an upstream identifier (string or numeric) into a
// ReachID. Numeric identifiers are formatted without a fractional part, which
// matches how the forecast service keys its reaches.
func NewReachID(v any) ReachID {
	switch id := v.(type) {
	case string:
		return ReachID(id)
	case float64:
		return ReachID(fmt.Sprintf("%.0f", id))
	case float32:
		return ReachID(fmt.Sprintf("%.0f", float64(id)))
	case int:
		return ReachID(fmt.Sprintf("%d", id))
	case int64:
		return ReachID(fmt.Sprintf("%d", id))
	case fmt.Stringer:
		return ReachID(id.String())
	default:
		return ReachID(fmt.Sprintf("%v", v))
	}
}

// Valid reports whether the identifier is a 3-15 digit numeric string, the
// shape every upstream reach key takes. Used at the API boundary to reject
// malformed ids before any upstream call.
func (r ReachID) Valid() bool {
	if len(r) < 3 || len(r) > 15 {
		return false
	}
	for _, c := range r {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Horizon is a forecast lead-time category.
type Horizon string

const (
	HorizonShort  Horizon = "short"  // ~18 hours
	HorizonMedium Horizon = "medium" // ~10 days
	HorizonLong   Horizon = "long"   // ~30 days
)

// horizonPriority is the order series are consulted when selecting a
// representative flow: shorter horizons are more accurate near the present.
var horizonPriority = []Horizon{HorizonShort, HorizonMedium, HorizonLong}

// NormalizedPoint is a single observation or forecast value: a UTC instant
// and a non-negative discharge in CFS.
type NormalizedPoint struct {
	Time    time.Time `json:"t"`
	FlowCFS float64   `json:"q"`
}

// NormalizedSeries is one forecast trace for a horizon. Label is "mean" for
// the ensemble mean or "member<N>" for an individual ensemble member. Points
// are unique by timestamp and sorted ascending.
type NormalizedSeries struct {
	Horizon Horizon           `json:"horizon"`
	Label   string            `json:"label"`
	Points  []NormalizedPoint `json:"points"`
}

// NormalizedFlowForecast is the canonical multi-horizon forecast for a reach.
// It is rebuilt from scratch on every fetch; nothing mutates it afterwards.
type NormalizedFlowForecast struct {
	ReachID  ReachID            `json:"reachId"`
	Series   []NormalizedSeries `json:"series"`
	PeakFlow *float64           `json:"peakFlow,omitempty"`
	Risk     *RiskLevel         `json:"risk,omitempty"`
}

// RiverReach is upstream metadata for a reach, served through the metadata
// proxy endpoint.
type RiverReach struct {
	ReachID     ReachID `json:"reachId"`
	Name        string  `json:"name,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	StreamOrder int     `json:"streamOrder,omitempty"`
	State       string  `json:"state,omitempty"`
}

// VisibleStream is a candidate reach discovered by a viewport query.
// Constructed fresh per query, deduplicated by StationID, never persisted.
type VisibleStream struct {
	StationID   string  `json:"stationId"`
	ReachID     ReachID `json:"reachId"`
	StreamOrder int     `json:"streamOrder"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	Name        string  `json:"name,omitempty"`
}
