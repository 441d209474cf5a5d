// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared data model for the trend service.
//
// The estimator pipeline works exclusively in kilograms. Persisted rows use
// gram-denominated integers so that recomputes are byte-stable. Conversion to
// the caller's display unit (kg or lb) happens only at the HTTP serialization
// boundary, never inside the model.
package datatypes

import (
	"fmt"
	"math"
)

// =============================================================================
// Units
// =============================================================================

// Weight units accepted at the API boundary.
const (
	UnitKg = "kg"
	UnitLb = "lb"
)

// LbPerKg is the exact conversion factor used at the serialization boundary.
const LbPerKg = 2.2046226218487757

// GramsPerKg converts between the persisted fixed-point representation and
// the model's kilogram domain.
const GramsPerKg = 1000.0

// KgToLb converts kilograms to pounds.
func KgToLb(kg float64) float64 {
	return kg * LbPerKg
}

// LbToKg converts pounds to kilograms.
func LbToKg(lb float64) float64 {
	return lb / LbPerKg
}

// FromKg converts a kilogram value to the requested display unit.
//
// # Inputs
//
//   - kg: Value in kilograms.
//   - unit: UnitKg or UnitLb.
//
// # Outputs
//
//   - float64: Converted value. Unknown units fall through to kilograms so a
//     malformed query parameter degrades to the canonical unit instead of
//     failing the request.
func FromKg(kg float64, unit string) float64 {
	if unit == UnitLb {
		return KgToLb(kg)
	}
	return kg
}

// ToKg converts a value in the given unit to kilograms.
//
// Returns an error for units other than UnitKg and UnitLb; observation writes
// must not silently guess what the client meant.
func ToKg(value float64, unit string) (float64, error) {
	switch unit {
	case UnitKg, "":
		return value, nil
	case UnitLb:
		return LbToKg(value), nil
	default:
		return 0, fmt.Errorf("unsupported weight unit %q", unit)
	}
}

// KgToGrams converts kilograms to the persisted integer-gram representation.
func KgToGrams(kg float64) int64 {
	return int64(math.Round(kg * GramsPerKg))
}

// GramsToKg converts persisted grams back to kilograms.
func GramsToKg(g int64) float64 {
	return float64(g) / GramsPerKg
}

// =============================================================================
// Observations
// =============================================================================

// Observation is a single weight measurement as seen by the model.
//
// Observations are immutable once handed to the pipeline. The source may
// return them in arbitrary order; the pipeline sorts by timestamp.
type Observation struct {
	// TimestampMs is the measurement time in Unix milliseconds.
	TimestampMs int64 `json:"timestamp_ms"`

	// WeightKg is the measured weight in kilograms. Entries that are not
	// finite and positive are filtered out before modeling rather than
	// rejected as errors.
	WeightKg float64 `json:"weight_kg"`
}

// Usable reports whether the observation can participate in modeling.
// Non-finite and non-positive weights are silently excluded.
func (o Observation) Usable() bool {
	return !math.IsNaN(o.WeightKg) && !math.IsInf(o.WeightKg, 0) && o.WeightKg > 0
}
