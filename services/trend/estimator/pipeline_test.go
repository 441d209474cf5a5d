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
	"reflect"
	"testing"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
)

// TestRun_Empty tests the empty-window short circuit.
func TestRun_Empty(t *testing.T) {
	out := Run(nil)
	if len(out.Points) != 0 {
		t.Errorf("Expected no points, got %d", len(out.Points))
	}
	if want := defaultMeasurementStdKg * defaultMeasurementStdKg; out.Params.MeasurementVariance != want {
		t.Errorf("measurement variance = %v, want default %v", out.Params.MeasurementVariance, want)
	}
	if out.WeeklyRateKgPerWeek != 0 {
		t.Errorf("weekly rate = %v, want 0", out.WeeklyRateKgPerWeek)
	}
}

// TestRun_FiltersUnusable tests that non-finite and non-positive weights are
// silently dropped, degrading to a valid model over the remaining points.
func TestRun_FiltersUnusable(t *testing.T) {
	obs := []datatypes.Observation{
		{TimestampMs: 0 * dayMs, WeightKg: 80},
		{TimestampMs: 1 * dayMs, WeightKg: math.NaN()},
		{TimestampMs: 2 * dayMs, WeightKg: math.Inf(1)},
		{TimestampMs: 3 * dayMs, WeightKg: -4},
		{TimestampMs: 4 * dayMs, WeightKg: 0},
		{TimestampMs: 5 * dayMs, WeightKg: 80.4},
	}
	out := Run(obs)
	if len(out.Points) != 2 {
		t.Fatalf("Expected 2 usable points, got %d", len(out.Points))
	}
	for _, p := range out.Points {
		if math.IsNaN(p.TrendWeightKg) || math.IsInf(p.TrendWeightKg, 0) {
			t.Errorf("trend value not finite: %+v", p)
		}
	}
}

// TestRun_SinglePoint tests the single-observation short circuit: the trend
// equals the observation with zero std and no regression.
func TestRun_SinglePoint(t *testing.T) {
	out := Run([]datatypes.Observation{{TimestampMs: 7 * dayMs, WeightKg: 82.5}})

	if len(out.Points) != 1 {
		t.Fatalf("Expected 1 point, got %d", len(out.Points))
	}
	p := out.Points[0]
	if p.TrendWeightKg != 82.5 || p.TrendStdKg != 0 {
		t.Errorf("single point = %+v, want trend 82.5 with std 0", p)
	}
	if p.Lower95Kg != 82.5 || p.Upper95Kg != 82.5 {
		t.Errorf("single point CI = [%v, %v], want collapsed to 82.5", p.Lower95Kg, p.Upper95Kg)
	}
	if out.Params.DriftPerDay != 0 {
		t.Errorf("drift = %v, want 0 (regression skipped)", out.Params.DriftPerDay)
	}
}

// TestRun_SortsArbitraryOrder tests that input order does not change the
// output: the pipeline sorts by timestamp internally.
func TestRun_SortsArbitraryOrder(t *testing.T) {
	ordered := []datatypes.Observation{
		{TimestampMs: 0 * dayMs, WeightKg: 80.0},
		{TimestampMs: 1 * dayMs, WeightKg: 80.2},
		{TimestampMs: 2 * dayMs, WeightKg: 79.9},
		{TimestampMs: 3 * dayMs, WeightKg: 80.3},
	}
	shuffled := []datatypes.Observation{ordered[2], ordered[0], ordered[3], ordered[1]}

	a := Run(ordered)
	b := Run(shuffled)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("output depends on input order:\n ordered: %+v\nshuffled: %+v", a, b)
	}
}

// TestRun_Deterministic tests that repeated runs over the same window are
// identical: the filter is a pure left-to-right scan.
func TestRun_Deterministic(t *testing.T) {
	obs := make([]datatypes.Observation, 0, 90)
	w := 84.0
	for i := 0; i < 90; i++ {
		w += 0.05 * math.Sin(float64(i))
		obs = append(obs, datatypes.Observation{TimestampMs: int64(i) * dayMs, WeightKg: w})
	}
	if a, b := Run(obs), Run(obs); !reflect.DeepEqual(a, b) {
		t.Error("two runs over the same window differ")
	}
}

// TestWeeklyRate_ExactTwoPoints tests the documented exact case: trend points
// at (day 0, 80.0) and (day 7, 79.0) give exactly -1.0 kg/week.
func TestWeeklyRate_ExactTwoPoints(t *testing.T) {
	points := []datatypes.TrendPoint{
		{TimestampMs: 0, TrendWeightKg: 80.0},
		{TimestampMs: 7 * dayMs, TrendWeightKg: 79.0},
	}
	if got := weeklyRate(points); got != -1.0 {
		t.Errorf("weekly rate = %v, want -1.0", got)
	}
}

// TestWeeklyRate_UsesRecentWindowOnly tests the min(14, N) window bound.
func TestWeeklyRate_UsesRecentWindowOnly(t *testing.T) {
	// 30 points: flat for 16 days, then dropping 0.1/day. The rate must be
	// computed over the last 14 points only.
	points := make([]datatypes.TrendPoint, 30)
	for i := range points {
		v := 90.0
		if i >= 16 {
			v = 90.0 - 0.1*float64(i-15)
		}
		points[i] = datatypes.TrendPoint{TimestampMs: int64(i) * dayMs, TrendWeightKg: v}
	}
	got := weeklyRate(points)
	want := (points[29].TrendWeightKg - points[16].TrendWeightKg) / 13 * 7
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("weekly rate = %v, want %v over the last 14 points", got, want)
	}
}

// TestWeeklyRate_SinglePoint tests the < 2 points fallback.
func TestWeeklyRate_SinglePoint(t *testing.T) {
	if got := weeklyRate([]datatypes.TrendPoint{{TrendWeightKg: 80}}); got != 0 {
		t.Errorf("weekly rate = %v, want 0 for a single point", got)
	}
}

// TestVolatilityLabel_Thresholds tests the fixed kg thresholds.
func TestVolatilityLabel_Thresholds(t *testing.T) {
	mk := func(std float64) []datatypes.TrendPoint {
		points := make([]datatypes.TrendPoint, 10)
		for i := range points {
			points[i] = datatypes.TrendPoint{TimestampMs: int64(i) * dayMs, TrendStdKg: std}
		}
		return points
	}

	cases := []struct {
		std  float64
		want datatypes.Volatility
	}{
		{0.3, datatypes.VolatilityLow},
		{0.8, datatypes.VolatilityMedium},
		{1.5, datatypes.VolatilityHigh},
	}
	for _, tc := range cases {
		if got := volatilityLabel(mk(tc.std)); got != tc.want {
			t.Errorf("median std %v kg: volatility = %q, want %q", tc.std, got, tc.want)
		}
	}
}
