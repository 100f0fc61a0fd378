package domain

import "time"

// FlowAt pairs a selected discharge with the instant it belongs to and the
// horizon of the series it came from.
type FlowAt struct {
	FlowCFS float64   `json:"flow"`
	Time    time.Time `json:"timestamp"`
	Horizon Horizon   `json:"horizon,omitempty"`
}

// CurrentFlow selects the discharge representing "now" using the package
// clock. See CurrentFlowAt for the selection policy.
func CurrentFlow(f *NormalizedFlowForecast) *FlowAt {
	return CurrentFlowAt(f, clock.Now())
}

// CurrentFlowAt selects the discharge representing the target instant.
// Series are consulted short → medium → long and the first series holding any
// points wins outright, whether or not a better match exists in a longer
// horizon. Within the chosen series the target is floored to the start of its
// hour, then: exact-timestamp match, else the latest point at or before the
// floored hour, else (all points in the future) the single closest point by
// absolute distance, first-seen winning exact ties.
//
// Returns nil when no series has any points. Never panics on a nil forecast.
func CurrentFlowAt(f *NormalizedFlowForecast, target time.Time) *FlowAt {
	series := firstPopulatedSeries(f)
	if series == nil {
		return nil
	}

	floored := target.UTC().Truncate(time.Hour)

	var latestBefore *NormalizedPoint
	for i := range series.Points {
		p := &series.Points[i]
		if p.Time.Equal(floored) {
			return &FlowAt{FlowCFS: p.FlowCFS, Time: p.Time, Horizon: series.Horizon}
		}
		if p.Time.Before(floored) {
			if latestBefore == nil || p.Time.After(latestBefore.Time) {
				latestBefore = p
			}
		}
	}
	if latestBefore != nil {
		return &FlowAt{FlowCFS: latestBefore.FlowCFS, Time: latestBefore.Time, Horizon: series.Horizon}
	}

	// Everything is in the future: nearest neighbor, strict-less comparison
	// so the first point seen wins an exact tie.
	var nearest *NormalizedPoint
	var nearestDiff time.Duration
	for i := range series.Points {
		p := &series.Points[i]
		diff := absDuration(p.Time.Sub(floored))
		if nearest == nil || diff < nearestDiff {
			nearest = p
			nearestDiff = diff
		}
	}
	if nearest == nil {
		return nil
	}
	return &FlowAt{FlowCFS: nearest.FlowCFS, Time: nearest.Time, Horizon: series.Horizon}
}

// LatestFlow returns the most recent point across every series, or nil when
// the forecast holds no points at all.
func LatestFlow(f *NormalizedFlowForecast) *FlowAt {
	if f == nil {
		return nil
	}
	var latest *FlowAt
	for _, s := range f.Series {
		for _, p := range s.Points {
			if latest == nil || p.Time.After(latest.Time) {
				latest = &FlowAt{FlowCFS: p.FlowCFS, Time: p.Time, Horizon: s.Horizon}
			}
		}
	}
	return latest
}

// InterpolatedFlow linearly interpolates discharge at the target instant from
// the bracketing points of a single series. With only one side of the bracket
// available it returns that side's value unmodified: no extrapolation. When
// the bracketing points share a timestamp (or the target lands exactly on a
// point) the value is returned directly, avoiding a zero-length division.
//
// Returns nil when the series is empty.
func InterpolatedFlow(points []NormalizedPoint, target time.Time) *float64 {
	target = target.UTC()

	var before, after *NormalizedPoint
	for i := range points {
		p := &points[i]
		if !p.Time.After(target) {
			if before == nil || p.Time.After(before.Time) {
				before = p
			}
		}
		if !p.Time.Before(target) {
			if after == nil || p.Time.Before(after.Time) {
				after = p
			}
		}
	}

	switch {
	case before == nil && after == nil:
		return nil
	case before == nil:
		v := after.FlowCFS
		return &v
	case after == nil:
		v := before.FlowCFS
		return &v
	case before.Time.Equal(after.Time):
		v := before.FlowCFS
		return &v
	}

	elapsed := target.Sub(before.Time).Seconds()
	span := after.Time.Sub(before.Time).Seconds()
	fraction := elapsed / span
	v := before.FlowCFS + (after.FlowCFS-before.FlowCFS)*fraction
	return &v
}

// CurrentFlowInterpolated applies the same short → medium → long priority
// search as CurrentFlowAt but interpolates within the chosen series instead
// of snapping to an existing point.
func CurrentFlowInterpolated(f *NormalizedFlowForecast, target time.Time) *FlowAt {
	series := firstPopulatedSeries(f)
	if series == nil {
		return nil
	}
	v := InterpolatedFlow(series.Points, target)
	if v == nil {
		return nil
	}
	return &FlowAt{FlowCFS: *v, Time: target.UTC(), Horizon: series.Horizon}
}

// PeakFlow returns the maximum discharge across all points in all series, or
// nil when there are none.
func PeakFlow(f *NormalizedFlowForecast) *float64 {
	if f == nil {
		return nil
	}
	var peak *float64
	for _, s := range f.Series {
		for _, p := range s.Points {
			if peak == nil || p.FlowCFS > *peak {
				v := p.FlowCFS
				peak = &v
			}
		}
	}
	return peak
}

// WithinForecastPeriod reports whether the target instant falls inside the
// inclusive [first, last] bounds of any series.
func WithinForecastPeriod(f *NormalizedFlowForecast, target time.Time) bool {
	if f == nil {
		return false
	}
	target = target.UTC()
	for _, s := range f.Series {
		if len(s.Points) == 0 {
			continue
		}
		first := s.Points[0].Time
		last := s.Points[len(s.Points)-1].Time
		if !target.Before(first) && !target.After(last) {
			return true
		}
	}
	return false
}

// firstPopulatedSeries walks horizons in priority order and returns the first
// series with any points, preserving upstream order within a horizon.
func firstPopulatedSeries(f *NormalizedFlowForecast) *NormalizedSeries {
	if f == nil {
		return nil
	}
	for _, h := range horizonPriority {
		for i := range f.Series {
			if f.Series[i].Horizon == h && len(f.Series[i].Points) > 0 {
				return &f.Series[i]
			}
		}
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
