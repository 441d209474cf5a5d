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
	"sort"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
)

// =============================================================================
// Pipeline
// =============================================================================

// recentWindowPoints bounds the summary statistics (weekly rate, volatility)
// to the most recent trend points.
const recentWindowPoints = 14

// Volatility thresholds on the median recent trend std, kg.
const (
	lowVolatilityMaxStdKg    = 0.5
	mediumVolatilityMaxStdKg = 1.2
)

// Run executes the full trend pipeline over a raw observation window.
//
// # Description
//
// Filters out non-finite and non-positive weights, sorts ascending by
// timestamp, derives the model parameters once over the whole window (warmup
// included), then runs the Kalman recursion per observation in order and
// assembles the summary statistics.
//
// Everything stays in kilograms; display-unit conversion belongs to the
// serialization boundary, never here.
//
// # Edge cases
//
//   - Empty (or fully filtered) input: empty output with default params.
//   - Single observation: one point anchored to that observation with
//     std 0, drift 0, and the default variances; regression is skipped.
func Run(obs []datatypes.Observation) datatypes.ModelOutput {
	usable := make([]datatypes.Observation, 0, len(obs))
	for _, o := range obs {
		if o.Usable() {
			usable = append(usable, o)
		}
	}
	sort.Slice(usable, func(i, j int) bool {
		return usable[i].TimestampMs < usable[j].TimestampMs
	})

	defaultParams := datatypes.ModelParams{
		MeasurementVariance: defaultMeasurementStdKg * defaultMeasurementStdKg,
		ProcessVariance:     defaultProcessStdKg * defaultProcessStdKg,
	}

	if len(usable) == 0 {
		return datatypes.ModelOutput{
			Points:     []datatypes.TrendPoint{},
			Volatility: datatypes.VolatilityLow,
			Params:     defaultParams,
		}
	}
	if len(usable) == 1 {
		o := usable[0]
		return datatypes.ModelOutput{
			Points: []datatypes.TrendPoint{{
				TimestampMs:   o.TimestampMs,
				WeightKg:      o.WeightKg,
				TrendWeightKg: o.WeightKg,
				TrendStdKg:    0,
				Lower95Kg:     o.WeightKg,
				Upper95Kg:     o.WeightKg,
			}},
			Volatility: datatypes.VolatilityLow,
			Params:     defaultParams,
		}
	}

	params := deriveParams(usable)

	kf := newKalmanFilter(params)
	points := make([]datatypes.TrendPoint, 0, len(usable))
	prevTs := usable[0].TimestampMs
	for _, o := range usable {
		gapDays := float64(o.TimestampMs-prevTs) / msPerDay
		kf.step(gapDays, o.WeightKg)
		points = append(points, kf.point(o))
		prevTs = o.TimestampMs
	}

	return datatypes.ModelOutput{
		Points:              points,
		WeeklyRateKgPerWeek: weeklyRate(points),
		Volatility:          volatilityLabel(points),
		Params:              params,
	}
}

// deriveParams runs the drift and noise estimators over the sorted window.
func deriveParams(sorted []datatypes.Observation) datatypes.ModelParams {
	firstTs := sorted[0].TimestampMs
	lastTs := sorted[len(sorted)-1].TimestampMs

	samples := make([]DriftSample, len(sorted))
	for i, o := range sorted {
		samples[i] = DriftSample{
			DayOffset: float64(o.TimestampMs-firstTs) / msPerDay,
			WeightKg:  o.WeightKg,
			AgeDays:   float64(lastTs-o.TimestampMs) / msPerDay,
		}
	}
	drift := EstimateDrift(samples)
	measVar, procVar := EstimateNoise(sorted, drift)

	return datatypes.ModelParams{
		DriftPerDay:         drift,
		MeasurementVariance: measVar,
		ProcessVariance:     procVar,
	}
}

// weeklyRate computes the trend change over the last min(14, N) points,
// normalized to kg/week. Fewer than 2 points yields 0.
//
// The rate is taken on the trend values, not the raw observations; raw
// deltas would re-introduce exactly the measurement noise the filter
// removed.
func weeklyRate(points []datatypes.TrendPoint) float64 {
	recent := recentPoints(points)
	if len(recent) < 2 {
		return 0
	}
	earliest := recent[0]
	latest := recent[len(recent)-1]
	daySpan := float64(latest.TimestampMs-earliest.TimestampMs) / msPerDay
	return (latest.TrendWeightKg - earliest.TrendWeightKg) / math.Max(1, daySpan) * 7
}

// volatilityLabel buckets the median recent trend std against fixed kg
// thresholds. Unit conversion of the thresholds happens at the serialization
// boundary only; the pipeline is unit-invariant internally.
func volatilityLabel(points []datatypes.TrendPoint) datatypes.Volatility {
	recent := recentPoints(points)
	stds := make([]float64, len(recent))
	for i, p := range recent {
		stds[i] = p.TrendStdKg
	}
	switch m := median(stds); {
	case m < lowVolatilityMaxStdKg:
		return datatypes.VolatilityLow
	case m < mediumVolatilityMaxStdKg:
		return datatypes.VolatilityMedium
	default:
		return datatypes.VolatilityHigh
	}
}

func recentPoints(points []datatypes.TrendPoint) []datatypes.TrendPoint {
	if len(points) <= recentWindowPoints {
		return points
	}
	return points[len(points)-recentWindowPoints:]
}
