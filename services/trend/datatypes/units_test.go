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

import (
	"math"
	"testing"
)

// TestUnitRoundTrip tests that kg -> lb -> kg recovers the original value
// within floating rounding tolerance (1e-6 relative).
func TestUnitRoundTrip(t *testing.T) {
	for _, kg := range []float64{0.001, 1, 55.5, 80.123456, 250, 635.0} {
		back := LbToKg(KgToLb(kg))
		if rel := math.Abs(back-kg) / kg; rel > 1e-6 {
			t.Errorf("round trip of %v kg drifted by %v relative", kg, rel)
		}
	}
}

// TestFromKg tests display-unit conversion at the boundary.
func TestFromKg(t *testing.T) {
	if got := FromKg(100, UnitLb); math.Abs(got-220.46226218487757) > 1e-9 {
		t.Errorf("FromKg(100, lb) = %v", got)
	}
	if got := FromKg(100, UnitKg); got != 100 {
		t.Errorf("FromKg(100, kg) = %v, want 100", got)
	}
	// Unknown units degrade to kilograms rather than failing a read.
	if got := FromKg(100, "stone"); got != 100 {
		t.Errorf("FromKg(100, stone) = %v, want kg passthrough", got)
	}
}

// TestToKg tests observation-write conversion, which must reject unknown
// units instead of guessing.
func TestToKg(t *testing.T) {
	if got, err := ToKg(220.46226218487757, UnitLb); err != nil || math.Abs(got-100) > 1e-9 {
		t.Errorf("ToKg(220.46..., lb) = %v, %v", got, err)
	}
	if got, err := ToKg(80, ""); err != nil || got != 80 {
		t.Errorf("ToKg(80, \"\") = %v, %v; want kg default", got, err)
	}
	if _, err := ToKg(80, "stone"); err == nil {
		t.Error("ToKg with unknown unit should error")
	}
}

// TestGramsRoundTrip tests the persisted fixed-point representation.
func TestGramsRoundTrip(t *testing.T) {
	if got := KgToGrams(80.1234); got != 80123 {
		t.Errorf("KgToGrams(80.1234) = %d, want 80123", got)
	}
	if got := GramsToKg(80123); math.Abs(got-80.123) > 1e-12 {
		t.Errorf("GramsToKg(80123) = %v, want 80.123", got)
	}
}

// TestObservationUsable tests the modeling filter predicate.
func TestObservationUsable(t *testing.T) {
	cases := []struct {
		weight float64
		want   bool
	}{
		{80.5, true},
		{0, false},
		{-3, false},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, tc := range cases {
		o := Observation{WeightKg: tc.weight}
		if got := o.Usable(); got != tc.want {
			t.Errorf("Usable(%v) = %v, want %v", tc.weight, got, tc.want)
		}
	}
}
