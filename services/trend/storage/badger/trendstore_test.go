// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
)

func newTestStore(t *testing.T) *TrendStore {
	t.Helper()
	store, err := NewTrendStore(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestObservations_RoundTrip tests upsert-then-fetch with range bounds.
func TestObservations_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutObservation(ctx, "u1", day(2025, 5, 1), 80500))
	require.NoError(t, store.PutObservation(ctx, "u1", day(2025, 5, 2), 80300))
	require.NoError(t, store.PutObservation(ctx, "u1", day(2025, 5, 10), 80100))
	// Another user must not leak into u1's range.
	require.NoError(t, store.PutObservation(ctx, "u2", day(2025, 5, 2), 99000))

	obs, err := store.FetchObservations(ctx, "u1", day(2025, 5, 1), day(2025, 5, 5))
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 80.5, obs[0].WeightKg)
	assert.Equal(t, 80.3, obs[1].WeightKg)
	assert.Equal(t, day(2025, 5, 1).UnixMilli(), obs[0].TimestampMs)
}

// TestObservations_UpsertOnePerDay tests that a second write for the same
// day overwrites rather than duplicates.
func TestObservations_UpsertOnePerDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutObservation(ctx, "u1", day(2025, 5, 1), 80500))
	require.NoError(t, store.PutObservation(ctx, "u1", day(2025, 5, 1), 79900))

	obs, err := store.FetchObservations(ctx, "u1", day(2025, 5, 1), day(2025, 5, 1))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 79.9, obs[0].WeightKg)
}

// TestTrendRows_RoundTripAndOrder tests range reads come back date-ordered.
func TestTrendRows_RoundTripAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []datatypes.TrendRow{
		{Date: "2025-05-03", TrendWeightGrams: 80100, TrendStdGrams: 300, CILowerGrams: 79512, CIUpperGrams: 80688},
		{Date: "2025-05-01", TrendWeightGrams: 80400, TrendStdGrams: 310, CILowerGrams: 79792, CIUpperGrams: 81008},
		{Date: "2025-05-02", TrendWeightGrams: 80250, TrendStdGrams: 305, CILowerGrams: 79652, CIUpperGrams: 80848},
	}
	require.NoError(t, store.UpsertTrendRows(ctx, "u1", rows))

	got, err := store.ReadTrendRows(ctx, "u1", day(2025, 5, 1), day(2025, 5, 3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2025-05-01", got[0].Date)
	assert.Equal(t, "2025-05-02", got[1].Date)
	assert.Equal(t, "2025-05-03", got[2].Date)
	assert.Equal(t, int64(80400), got[0].TrendWeightGrams)
}

// TestMarkStale tests in-range rows are flagged without deletion and rows
// outside the range stay untouched.
func TestMarkStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertTrendRows(ctx, "u1", []datatypes.TrendRow{
		{Date: "2025-04-01", TrendWeightGrams: 81000},
		{Date: "2025-05-01", TrendWeightGrams: 80400},
		{Date: "2025-05-02", TrendWeightGrams: 80250},
	}))

	require.NoError(t, store.MarkStale(ctx, "u1", day(2025, 5, 1), day(2025, 5, 31)))

	got, err := store.ReadTrendRows(ctx, "u1", day(2025, 4, 1), day(2025, 5, 31))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.False(t, got[0].Stale, "row outside the range must stay fresh")
	assert.True(t, got[1].Stale)
	assert.True(t, got[2].Stale)
	// Values survive the stale flag; rows are invalidated, not deleted.
	assert.Equal(t, int64(80400), got[1].TrendWeightGrams)
}

// TestTrendMeta_RoundTrip tests the per-user summary record.
func TestTrendMeta_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.ReadTrendMeta(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "meta should not exist before any recompute")

	meta := datatypes.TrendMeta{
		WeeklyRateGramsPerWeek: -450,
		Volatility:             datatypes.VolatilityMedium,
		ComputedAtDay:          "2025-06-01",
	}
	require.NoError(t, store.PutTrendMeta(ctx, "u1", meta))

	got, ok, err := store.ReadTrendMeta(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta, got)
}

// TestContextCancellation tests that a cancelled context short-circuits.
func TestContextCancellation(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.PutObservation(ctx, "u1", day(2025, 5, 1), 80500)
	assert.Error(t, err)
}
