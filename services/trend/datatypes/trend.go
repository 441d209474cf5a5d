// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// =============================================================================
// Model Parameters
// =============================================================================

// ModelParams holds the parameters derived once per pipeline invocation over
// the full input window (warmup included). Immutable for that invocation.
type ModelParams struct {
	// DriftPerDay is the estimated linear rate of change of the latent
	// trend weight, in kg/day. Positive means gaining.
	DriftPerDay float64 `json:"drift_per_day"`

	// MeasurementVariance is the measurement noise variance in kg².
	MeasurementVariance float64 `json:"measurement_variance"`

	// ProcessVariance is the process noise variance in kg²/day.
	ProcessVariance float64 `json:"process_variance"`
}

// =============================================================================
// Trend Output
// =============================================================================

// TrendPoint is the filtered estimate for one observation, emitted in
// chronological order.
//
// Invariants:
//   - TrendStdKg >= 0 (floored in the filter).
//   - Lower95Kg = TrendWeightKg - 1.96*TrendStdKg
//   - Upper95Kg = TrendWeightKg + 1.96*TrendStdKg
type TrendPoint struct {
	TimestampMs   int64   `json:"timestamp_ms"`
	WeightKg      float64 `json:"weight_kg"`
	TrendWeightKg float64 `json:"trend_weight_kg"`
	TrendStdKg    float64 `json:"trend_std_kg"`
	Lower95Kg     float64 `json:"lower_95_kg"`
	Upper95Kg     float64 `json:"upper_95_kg"`
}

// Volatility labels how noisy the recent trend estimate is.
type Volatility string

// Volatility labels, thresholded on the median recent trend std in kg.
const (
	VolatilityLow    Volatility = "low"
	VolatilityMedium Volatility = "medium"
	VolatilityHigh   Volatility = "high"
)

// ModelOutput is the result of one pipeline run. It is produced fresh per
// call and never persisted directly; the materialization layer persists a
// derived subset of its points.
type ModelOutput struct {
	Points []TrendPoint `json:"points"`

	// WeeklyRateKgPerWeek is the rate of trend change over the recent
	// window, in kg/week.
	WeeklyRateKgPerWeek float64 `json:"weekly_rate_kg_per_week"`

	Volatility Volatility  `json:"volatility"`
	Params     ModelParams `json:"params"`
}
