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
	"testing"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
)

const dayMs = int64(86_400_000)

// dailyObservations builds one observation per day from weights.
func dailyObservations(weights []float64) []datatypes.Observation {
	obs := make([]datatypes.Observation, len(weights))
	for i, w := range weights {
		obs[i] = datatypes.Observation{TimestampMs: int64(i) * dayMs, WeightKg: w}
	}
	return obs
}

// TestEstimateNoise_InsufficientHistory tests that short windows return the
// configured default variances instead of a degenerate robust-std estimate.
func TestEstimateNoise_InsufficientHistory(t *testing.T) {
	wantMeas := defaultMeasurementStdKg * defaultMeasurementStdKg
	wantProc := defaultProcessStdKg * defaultProcessStdKg

	for _, weights := range [][]float64{nil, {80}, {80, 80.2}} {
		measVar, procVar := EstimateNoise(dailyObservations(weights), 0)
		if measVar != wantMeas {
			t.Errorf("weights=%v: measurement variance = %v, want default %v", weights, measVar, wantMeas)
		}
		if procVar != wantProc {
			t.Errorf("weights=%v: process variance = %v, want default %v", weights, procVar, wantProc)
		}
	}
}

// TestEstimateNoise_RatioCap tests that process variance is clamped to
// exactly 0.35x the measurement variance when the raw estimate exceeds it.
func TestEstimateNoise_RatioCap(t *testing.T) {
	// Observations 30 days apart with large, varied jumps between them.
	// Over a 30-day gap the EWMA (7-day time constant) has essentially
	// converged, so the measurement residuals are tiny (measurement std
	// clamps to its floor) while the drift-corrected EWMA deltas are huge
	// and spread out (process std clamps to its ceiling). The raw process
	// variance then far exceeds 0.35x the measurement variance.
	jumps := []float64{8, -3, 6, -7, 2, 9, -6, 4, -8, 5, -2}
	obs := make([]datatypes.Observation, 0, len(jumps)+1)
	w := 70.0
	obs = append(obs, datatypes.Observation{TimestampMs: 0, WeightKg: w})
	for i, j := range jumps {
		w += j
		obs = append(obs, datatypes.Observation{
			TimestampMs: int64(i+1) * 30 * dayMs,
			WeightKg:    w,
		})
	}

	measVar, procVar := EstimateNoise(obs, 0)

	if want := minMeasurementStdKg * minMeasurementStdKg; measVar != want {
		t.Fatalf("measurement variance = %v, want lower clamp %v", measVar, want)
	}
	if got, want := procVar, maxProcessToMeasurementRatio*measVar; got != want {
		t.Errorf("process variance = %v, want exactly ratio cap %v", got, want)
	}
}

// TestEstimateNoise_Clamps tests the absolute std bounds.
func TestEstimateNoise_Clamps(t *testing.T) {
	t.Run("measurement std floored for a flat series", func(t *testing.T) {
		weights := make([]float64, 30)
		for i := range weights {
			weights[i] = 75
		}
		measVar, procVar := EstimateNoise(dailyObservations(weights), 0)
		if want := minMeasurementStdKg * minMeasurementStdKg; measVar != want {
			t.Errorf("measurement variance = %v, want floor %v", measVar, want)
		}
		if want := minProcessStdKg * minProcessStdKg; procVar != want {
			t.Errorf("process variance = %v, want floor %v", procVar, want)
		}
	})

	t.Run("measurement std capped for a wild series", func(t *testing.T) {
		weights := make([]float64, 30)
		for i := range weights {
			if i%2 == 0 {
				weights[i] = 60
			} else {
				weights[i] = 100
			}
		}
		measVar, _ := EstimateNoise(dailyObservations(weights), 0)
		if want := maxMeasurementStdKg * maxMeasurementStdKg; measVar != want {
			t.Errorf("measurement variance = %v, want cap %v", measVar, want)
		}
	})
}

// TestEstimateNoise_SameDayDuplicates tests that zero-gap steps are excluded
// from the process residual family rather than epsilon-guarded: the result
// stays finite and matches the series without the duplicate.
func TestEstimateNoise_SameDayDuplicates(t *testing.T) {
	base := dailyObservations([]float64{80, 80.3, 79.9, 80.1, 80.4, 80.0, 80.2, 79.8})

	withDup := make([]datatypes.Observation, 0, len(base)+1)
	withDup = append(withDup, base[:4]...)
	// Same timestamp and weight as the previous entry: the EWMA step is a
	// no-op (alpha 0) and the zero gap must not enter the process family.
	withDup = append(withDup, base[3])
	withDup = append(withDup, base[4:]...)

	measVar, procVar := EstimateNoise(withDup, 0.01)
	if math.IsNaN(measVar) || math.IsInf(measVar, 0) || math.IsNaN(procVar) || math.IsInf(procVar, 0) {
		t.Fatalf("variances not finite with same-day duplicate: meas=%v proc=%v", measVar, procVar)
	}

	_, procWithout := EstimateNoise(base, 0.01)
	if procVar != procWithout {
		t.Errorf("process variance changed by a zero-gap duplicate: with=%v without=%v", procVar, procWithout)
	}
}

// TestRobustStd_IgnoresSpikes tests that a single outlier barely moves the
// MAD-based estimate while it would dominate a plain stddev.
func TestRobustStd_IgnoresSpikes(t *testing.T) {
	residuals := []float64{-0.2, 0.1, -0.1, 0.2, 0.0, -0.15, 0.15, 0.05}
	clean := robustStd(residuals)

	spiked := append(append([]float64{}, residuals...), 25.0)
	withSpike := robustStd(spiked)

	if withSpike > 2*clean {
		t.Errorf("robust std moved too much on a single spike: clean=%v spiked=%v", clean, withSpike)
	}
}

// TestMedian covers the even/odd/empty cases used by the noise estimator.
func TestMedian(t *testing.T) {
	if got := median(nil); got != 0 {
		t.Errorf("median(nil) = %v, want 0", got)
	}
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Errorf("median odd = %v, want 2", got)
	}
	if got := median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Errorf("median even = %v, want 2.5", got)
	}
	// Input must not be reordered.
	in := []float64{3, 1, 2}
	median(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("median mutated its input: %v", in)
	}
}
