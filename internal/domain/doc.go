// Package domain models National Water Model (NWM) river flow data.
//
// # Data Source
//
// Flow forecasts originate from the NOAA National Water Prediction Service,
// which publishes per-reach discharge series for three lead-time horizons:
// short range (~18 hours, deterministic), medium range (~10 days, ensemble),
// and long range (~30 days, ensemble). Each reach is keyed by a stable
// numeric identifier (the NHDPlus "comid"), carried here as the ReachID type.
//
// # Upstream Conventions
//
// Timestamps:
//
//	ISO-8601 strings under one of several aliased keys (validTime,
//	forecast-time, timestamp, time, t, dateTime), normalized to UTC.
//	Records with unparsable timestamps are dropped, not zeroed.
//
// Discharge:
//
//	Numeric or numeric-string values under aliased keys (flow, value,
//	discharge, q, streamflow). Units arrive as free-text labels and are
//	CMS-like or CFS-like; everything normalizes to CFS. Unknown labels pass
//	values through unchanged rather than guess-converting.
//
// Missing data:
//
//	Encoded upstream as a negative sentinel (commonly -9999 in source
//	units). Filtering is by sign only, never by the exact constant, so the
//	sentinel survives unit conversion. A side effect, accepted deliberately:
//	a legitimate small negative reading from measurement noise would also be
//	dropped.
//
// Return periods:
//
//	Statistical recurrence thresholds (2- through 100-year flows) served in
//	CMS per feature_id and converted field-by-field to CFS. Monotonicity
//	across the six thresholds is assumed, not validated; ComputeRisk's
//	three-gate ladder (RP2/RP25/RP50) depends on that assumption.
//
// # Risk Classification
//
// The four-level scale (normal, elevated, high, flood) is a project-specific
// simplification for user-facing severity styling:
//
//	normal   < RP2
//	elevated ≥ RP2
//	high     ≥ RP25
//	flood    ≥ RP50
//
// RP5, RP10, and RP100 are carried for display but never gate a level.
package domain
