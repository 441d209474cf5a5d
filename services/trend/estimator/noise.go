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
// Noise Estimation
// =============================================================================

const (
	// ewmaTimeConstantDays is the time constant of the smoothed reference
	// series used for residual extraction.
	ewmaTimeConstantDays = 7.0

	// Clamp bounds for the measurement noise standard deviation, kg.
	minMeasurementStdKg = 0.25
	maxMeasurementStdKg = 3.5

	// Clamp bounds for the process noise standard deviation, kg.
	minProcessStdKg = 0.02
	maxProcessStdKg = 0.6

	// maxProcessToMeasurementRatio caps process variance relative to
	// measurement variance. Without it a run of jumpy EWMA deltas lets
	// process noise dominate and the confidence band widens without bound.
	maxProcessToMeasurementRatio = 0.35

	// Defaults used when the window has too little history to estimate
	// variances robustly.
	defaultMeasurementStdKg = 0.9
	defaultProcessStdKg     = 0.1

	// minUsableResiduals is the smallest residual family worth running the
	// MAD estimator over.
	minUsableResiduals = 3
)

// EstimateNoise derives the measurement and process noise variances from a
// chronologically sorted observation window plus the drift estimate.
//
// # Description
//
// An EWMA with a 7-day time constant smooths the series; measurement
// residuals are observation minus EWMA, process residuals are the drift-
// corrected EWMA delta normalized by sqrt(gap). Each family goes through the
// MAD-based robust std, is squared, clamped, and the process variance is
// additionally capped at 0.35x the measurement variance.
//
// Same-day duplicate steps (gap of zero days) are excluded from the process
// residual family entirely rather than epsilon-guarded; a clamp there would
// silently distort the robust std.
//
// # Outputs
//
//   - measurementVariance, processVariance in kg². With fewer than 3 usable
//     residuals in a family, the configured defaults are returned for it.
func EstimateNoise(obs []datatypes.Observation, driftPerDay float64) (measurementVariance, processVariance float64) {
	measurementVariance = defaultMeasurementStdKg * defaultMeasurementStdKg
	processVariance = defaultProcessStdKg * defaultProcessStdKg
	if len(obs) == 0 {
		return measurementVariance, processVariance
	}

	// Single-pass EWMA; each invocation owns this accumulator.
	ewma := obs[0].WeightKg
	prevEwma := ewma
	prevTs := obs[0].TimestampMs

	measResiduals := make([]float64, 0, len(obs))
	procResiduals := make([]float64, 0, len(obs))
	measResiduals = append(measResiduals, 0) // first observation matches its own seed

	for _, o := range obs[1:] {
		gapDays := float64(o.TimestampMs-prevTs) / msPerDay
		alpha := 1 - math.Exp(-gapDays/ewmaTimeConstantDays)
		ewma += alpha * (o.WeightKg - ewma)

		measResiduals = append(measResiduals, o.WeightKg-ewma)
		if gapDays > 0 {
			procResiduals = append(procResiduals,
				(ewma-prevEwma-driftPerDay*gapDays)/math.Sqrt(gapDays))
		}

		prevEwma = ewma
		prevTs = o.TimestampMs
	}

	if len(measResiduals) >= minUsableResiduals {
		std := clamp(robustStd(measResiduals), minMeasurementStdKg, maxMeasurementStdKg)
		measurementVariance = std * std
	}
	if len(procResiduals) >= minUsableResiduals {
		std := clamp(robustStd(procResiduals), minProcessStdKg, maxProcessStdKg)
		processVariance = std * std
	}

	if limit := maxProcessToMeasurementRatio * measurementVariance; processVariance > limit {
		processVariance = limit
	}
	return measurementVariance, processVariance
}
