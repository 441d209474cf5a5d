// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package materialize decides which window of weight history to recompute and
// when, persists the resulting trend rows, and serves cached reads with
// staleness detection.
//
// # Window Model
//
// Relative to a user-local "today":
//
//	modelStart                 activeStart                    today
//	    |----- warmup (30d) ------|------ active horizon (120d) ---|
//
// Only rows in [activeStart, today] are ever materialized or treated as
// current. The warmup range exists solely to stabilize the filter state and
// is never persisted as trend output. Reads below activeStart fall back to
// the raw observed weight.
package materialize

import (
	"time"
)

// =============================================================================
// Window
// =============================================================================

// Default window geometry, in days.
const (
	DefaultActiveHorizonDays = 120
	DefaultWarmupDays        = 30
)

// Window is the date geometry of one recompute, anchored to a user-local
// "today".
type Window struct {
	// Today is the user-local date at UTC midnight resolution.
	Today time.Time

	ActiveHorizonDays int
	WarmupDays        int
}

// NewWindow builds a window with the default geometry around today.
func NewWindow(today time.Time) Window {
	return Window{
		Today:             today,
		ActiveHorizonDays: DefaultActiveHorizonDays,
		WarmupDays:        DefaultWarmupDays,
	}
}

// ModelStart is the earliest date fetched for modeling (warmup included).
func (w Window) ModelStart() time.Time {
	return w.Today.AddDate(0, 0, -(w.ActiveHorizonDays + w.WarmupDays))
}

// ActiveStart is the earliest date whose trend output is materialized.
func (w Window) ActiveStart() time.Time {
	return w.Today.AddDate(0, 0, -w.ActiveHorizonDays)
}

// Contains reports whether date is inside the active horizon [ActiveStart, Today].
func (w Window) Contains(date time.Time) bool {
	return !date.Before(w.ActiveStart()) && !date.After(w.Today)
}

// =============================================================================
// Today Resolution
// =============================================================================

// ResolveToday computes the current date in the given IANA time zone,
// normalized to a date-only value (midnight UTC of the local calendar day).
//
// An empty or invalid zone falls back to UTC rather than failing the request:
// a user with a corrupt profile still gets a trend, just anchored to UTC days.
func ResolveToday(timeZone string, now time.Time) time.Time {
	loc := time.UTC
	if timeZone != "" {
		if parsed, err := time.LoadLocation(timeZone); err == nil {
			loc = parsed
		}
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns whole days from a to b, both at date resolution.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
