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

import "time"

// DayKeyLayout is the canonical date format for per-day keys ("YYYY-MM-DD").
const DayKeyLayout = "2006-01-02"

// DayKey formats a time as the canonical per-day key, in the time's location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// =============================================================================
// Materialized Rows
// =============================================================================

// TrendRow is the persisted trend estimate for one (user, date).
//
// Values are gram-denominated integers so that two recomputes over the same
// observations serialize to byte-identical rows. Rows are created or
// overwritten by a window recompute and marked Stale (not deleted) when a
// recompute fails partway; a stale row forces the next read to recompute.
//
// Rows outside the active horizon are not required to exist. Their absence is
// not an error: reads below the horizon fall back to the raw observed weight.
type TrendRow struct {
	// Date is the day key ("YYYY-MM-DD") this row covers.
	Date string `json:"date"`

	TrendWeightGrams int64 `json:"trend_weight_grams"`
	TrendStdGrams    int64 `json:"trend_std_grams"`
	CILowerGrams     int64 `json:"ci_lower_grams"`
	CIUpperGrams     int64 `json:"ci_upper_grams"`

	// Stale marks the row invalid after a failed recompute.
	Stale bool `json:"stale,omitempty"`
}

// TrendMeta is the persisted per-user summary written alongside the rows of
// the most recent successful recompute.
type TrendMeta struct {
	WeeklyRateGramsPerWeek int64      `json:"weekly_rate_grams_per_week"`
	Volatility             Volatility `json:"volatility"`

	// ComputedAtDay is the day key of "today" at recompute time.
	ComputedAtDay string `json:"computed_at_day"`
}

// ObservationRecord is the persisted form of one weight log entry, one per
// user per day, gram-denominated.
type ObservationRecord struct {
	Date        string `json:"date"`
	WeightGrams int64  `json:"weight_grams"`
}
