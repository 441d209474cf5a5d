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

import "math"

// =============================================================================
// Drift Estimation
// =============================================================================

// driftHalfLifeDays is the recency-weighting half-life: every 30 days of age
// halves an observation's influence on the slope.
const driftHalfLifeDays = 30.0

// degenerateEps is the threshold below which a regression denominator is
// treated as zero.
const degenerateEps = 1e-12

// DriftSample is one input to the drift estimator.
type DriftSample struct {
	// DayOffset is continuous days since the first observation in the window.
	DayOffset float64

	// WeightKg is the observed weight.
	WeightKg float64

	// AgeDays is days since the most recent observation in the window,
	// used for recency weighting.
	AgeDays float64
}

// EstimateDrift computes the recency-weighted least-squares slope over the
// window, in kg/day. Positive means gaining.
//
// # Description
//
// Observations are weighted with w = exp(-ln2 * age/30) so recent data
// dominates the slope without discarding older context. If the weighted
// regression is numerically degenerate (all samples on the same day), it
// falls back to an unweighted slope over the same points; if that is also
// degenerate it returns 0. Degeneracy is always recovered locally, never
// surfaced as an error.
func EstimateDrift(samples []DriftSample) float64 {
	if len(samples) < 2 {
		return 0
	}

	var sumW, sumWX, sumWY float64
	for _, s := range samples {
		w := math.Exp(-math.Ln2 * s.AgeDays / driftHalfLifeDays)
		sumW += w
		sumWX += w * s.DayOffset
		sumWY += w * s.WeightKg
	}
	if sumW <= 0 {
		return unweightedSlope(samples)
	}
	meanX := sumWX / sumW
	meanY := sumWY / sumW

	var num, den float64
	for _, s := range samples {
		w := math.Exp(-math.Ln2 * s.AgeDays / driftHalfLifeDays)
		dx := s.DayOffset - meanX
		num += w * dx * (s.WeightKg - meanY)
		den += w * dx * dx
	}
	if math.Abs(den) < degenerateEps {
		return unweightedSlope(samples)
	}
	return num / den
}

// unweightedSlope is the fallback ordinary least-squares slope. Returns 0
// when fewer than 2 distinct day offsets exist.
func unweightedSlope(samples []DriftSample) float64 {
	n := float64(len(samples))
	var sumX, sumY float64
	for _, s := range samples {
		sumX += s.DayOffset
		sumY += s.WeightKg
	}
	meanX := sumX / n
	meanY := sumY / n

	var num, den float64
	for _, s := range samples {
		dx := s.DayOffset - meanX
		num += dx * (s.WeightKg - meanY)
		den += dx * dx
	}
	if math.Abs(den) < degenerateEps {
		return 0
	}
	return num / den
}
