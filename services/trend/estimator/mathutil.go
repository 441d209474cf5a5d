// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package estimator implements the weight trend model: a recency-weighted
// drift estimator and a robust noise estimator feeding a 1-D Kalman filter,
// orchestrated by Run over a bounded window of observations.
//
// Everything in this package is a pure function of its inputs. Each call owns
// its accumulator state, so concurrent runs for different users need no
// coordination.
package estimator

import (
	"math"
	"sort"
)

const msPerDay = 86_400_000.0

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// median returns the median of values. The input slice is not modified.
// Returns 0 for an empty input.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// madScale makes 1.4826*MAD a consistent estimator of the standard deviation
// for normally distributed residuals.
const madScale = 1.4826

// robustStd estimates the standard deviation of residuals via the median
// absolute deviation. Unlike a plain stddev it is insensitive to the
// occasional spike (a mistyped weight, a scale glitch).
func robustStd(residuals []float64) float64 {
	if len(residuals) == 0 {
		return 0
	}
	m := median(residuals)
	deviations := make([]float64, len(residuals))
	for i, r := range residuals {
		deviations[i] = math.Abs(r - m)
	}
	return madScale * median(deviations)
}
