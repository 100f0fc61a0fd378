package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// timeKeys and flowKeys are the field aliases seen across upstream payload
// shapes, in priority order. The first alias that resolves and parses wins.
var (
	timeKeys = []string{"validTime", "forecast-time", "timestamp", "time", "t", "dateTime"}
	flowKeys = []string{"flow", "value", "discharge", "q", "streamflow"}
)

// timeLayouts are the timestamp formats accepted from upstream, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// NormalizePoints converts a raw, loosely-typed time series into canonical
// points: timestamps resolved through the alias list and parsed to UTC,
// discharge coerced to a finite number and converted to CFS per unitsLabel,
// negative values dropped (the upstream missing-data sentinel is a negative
// constant, so sign alone is the filter), duplicates collapsed last-write-wins
// by exact timestamp, and the result sorted ascending.
//
// Malformed or empty input yields an empty slice, never an error.
func NormalizePoints(raw any, unitsLabel string) []NormalizedPoint {
	records := rawRecords(raw)
	if len(records) == 0 {
		return []NormalizedPoint{}
	}

	byTime := make(map[int64]NormalizedPoint, len(records))
	order := make([]int64, 0, len(records))

	for _, rec := range records {
		t, ok := resolveTime(rec)
		if !ok {
			continue
		}
		q, ok := resolveFlow(rec)
		if !ok {
			continue
		}
		// Sentinel policy: negative discharge means "no data" upstream
		// (commonly -9999 in source units). Filter by sign only; the exact
		// constant is never special-cased.
		if q < 0 {
			continue
		}
		q = ToCfs(q, unitsLabel)

		key := t.UnixNano()
		if _, seen := byTime[key]; !seen {
			order = append(order, key)
		}
		byTime[key] = NormalizedPoint{Time: t, FlowCFS: q}
	}

	points := make([]NormalizedPoint, 0, len(byTime))
	for _, key := range order {
		points = append(points, byTime[key])
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points
}

// rawRecords extracts the record list from the two payload shapes upstream
// produces: a bare array, or an object wrapping the array under "points" or
// "data".
func rawRecords(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"points", "data"} {
			if inner, ok := v[key].([]any); ok {
				return inner
			}
		}
	}
	return nil
}

// resolveTime finds the first aliased timestamp field that parses to an
// instant, normalized to UTC.
func resolveTime(rec any) (time.Time, bool) {
	m, ok := rec.(map[string]any)
	if !ok {
		return time.Time{}, false
	}
	for _, key := range timeKeys {
		v, ok := m[key]
		if !ok {
			continue
		}
		if t, ok := parseInstant(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseInstant(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t.UTC(), true
			}
		}
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return time.Time{}, false
		}
		// Bare numbers are Unix seconds.
		return time.Unix(int64(val), 0).UTC(), true
	}
	return time.Time{}, false
}

// resolveFlow finds the first aliased discharge field that coerces to a
// finite number.
func resolveFlow(rec any) (float64, bool) {
	m, ok := rec.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, key := range flowKeys {
		v, ok := m[key]
		if !ok {
			continue
		}
		if q, ok := coerceFinite(v); ok {
			return q, true
		}
	}
	return 0, false
}

func coerceFinite(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// SeriesInput is one raw forecast trace prior to normalization.
type SeriesInput struct {
	Horizon Horizon
	Label   string
	Payload any
	Units   string
}

// BuildNormalizedForecast normalizes each input series and assembles the
// forecast for a reach. The reach identifier crosses into the branded ReachID
// type exactly once, here. Series that normalize to zero points are kept so
// the selection engine's horizon priority sees the same shape the upstream
// returned.
func BuildNormalizedForecast(reachID any, inputs []SeriesInput) NormalizedFlowForecast {
	forecast := NormalizedFlowForecast{
		ReachID: NewReachID(reachID),
		Series:  make([]NormalizedSeries, 0, len(inputs)),
	}
	for _, in := range inputs {
		forecast.Series = append(forecast.Series, NormalizedSeries{
			Horizon: in.Horizon,
			Label:   in.Label,
			Points:  NormalizePoints(in.Payload, in.Units),
		})
	}
	forecast.PeakFlow = PeakFlow(&forecast)
	return forecast
}
