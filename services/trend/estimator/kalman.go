// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package estimator

import (
	"math"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
)

// =============================================================================
// 1-D Kalman Filter
// =============================================================================

const (
	// maxPredictionGapDays caps the prediction horizon: a long silent gap
	// must not imply unbounded uncertainty growth.
	maxPredictionGapDays = 14.0

	// varianceFloor keeps the posterior variance from collapsing to zero,
	// which would make the filter ignore all future measurements.
	varianceFloor = 1e-8

	// z95 is the normal quantile for a 95% confidence band.
	z95 = 1.96
)

// kalmanFilter is the scalar predict/update recursion over the trend state.
//
// State is (x, P): the trend estimate in kg and its posterior variance in
// kg². The recursion is a strict left-to-right scan branching only on the gap
// between consecutive observations, never on absolute time of day, so results
// are reproducible given the same sorted input and parameters.
type kalmanFilter struct {
	x      float64
	p      float64
	params datatypes.ModelParams
	primed bool
}

func newKalmanFilter(params datatypes.ModelParams) *kalmanFilter {
	return &kalmanFilter{params: params}
}

// step advances the filter by one observation and returns the posterior
// state. gapDays is the real gap since the previous observation.
//
// The first observation anchors the state exactly: x = observed,
// P = measurement variance. That cold start is a deliberate product choice
// (day-1 trend equals the first reading), not a generic Kalman prior.
func (kf *kalmanFilter) step(gapDays, observedKg float64) (x, p float64) {
	if !kf.primed {
		kf.x = observedKg
		kf.p = kf.params.MeasurementVariance
		kf.primed = true
		return kf.x, kf.p
	}

	// Predict.
	gap := math.Min(gapDays, maxPredictionGapDays)
	kf.x += kf.params.DriftPerDay * gap
	kf.p += kf.params.ProcessVariance * gap

	// Update.
	innovation := observedKg - kf.x
	s := kf.p + kf.params.MeasurementVariance
	gain := kf.p / s
	kf.x += gain * innovation
	kf.p = math.Max(varianceFloor, (1-gain)*kf.p)

	return kf.x, kf.p
}

// point assembles the emitted TrendPoint for the current posterior state.
func (kf *kalmanFilter) point(o datatypes.Observation) datatypes.TrendPoint {
	std := math.Sqrt(kf.p)
	return datatypes.TrendPoint{
		TimestampMs:   o.TimestampMs,
		WeightKg:      o.WeightKg,
		TrendWeightKg: kf.x,
		TrendStdKg:    std,
		Lower95Kg:     kf.x - z95*std,
		Upper95Kg:     kf.x + z95*std,
	}
}
