// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package materialize

import (
	"context"
	"time"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
)

// =============================================================================
// Store Interfaces
// =============================================================================

// ObservationSource provides the raw weight history for a user. The manager
// only ever requests bounded date ranges, never full history.
type ObservationSource interface {
	// FetchObservations returns all observations with a date in [from, to]
	// (inclusive, date resolution), in any order, weights in kilograms.
	FetchObservations(ctx context.Context, userID string, from, to time.Time) ([]datatypes.Observation, error)
}

// ObservationStore accepts new weight log entries, one per user per day.
type ObservationStore interface {
	// PutObservation upserts the entry for (userID, date).
	PutObservation(ctx context.Context, userID string, date time.Time, weightGrams int64) error
}

// TrendRowStore persists and serves materialized trend rows keyed by
// (user, date).
type TrendRowStore interface {
	// UpsertTrendRows overwrites the rows for the user. Row dates outside
	// the given set are left untouched.
	UpsertTrendRows(ctx context.Context, userID string, rows []datatypes.TrendRow) error

	// MarkStale flags every existing row for the user in [from, to] as
	// stale without deleting it. Used after a failed recompute so the next
	// read repairs the window instead of serving mixed data.
	MarkStale(ctx context.Context, userID string, from, to time.Time) error

	// ReadTrendRows returns the rows with a date in [from, to], sorted
	// ascending by date. Missing dates are simply absent from the result.
	ReadTrendRows(ctx context.Context, userID string, from, to time.Time) ([]datatypes.TrendRow, error)

	// PutTrendMeta stores the per-user summary of the latest successful
	// recompute.
	PutTrendMeta(ctx context.Context, userID string, meta datatypes.TrendMeta) error

	// ReadTrendMeta returns the stored summary, or ok=false if none exists.
	ReadTrendMeta(ctx context.Context, userID string) (meta datatypes.TrendMeta, ok bool, err error)
}

// Store is the full persistence surface the service wires in. The embedded
// badger implementation satisfies it; tests may substitute any part.
type Store interface {
	ObservationSource
	ObservationStore
	TrendRowStore
}
