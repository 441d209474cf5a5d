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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
	"github.com/AleutianAI/AleutianVital/services/trend/estimator"
	"github.com/AleutianAI/AleutianVital/services/trend/observability"
)

var tracer = otel.Tracer("aleutianvital.trend.materialize")

// =============================================================================
// Manager
// =============================================================================

// Manager owns the materialization policy: when to recompute, which rows to
// persist, and how to serve reads with staleness repair.
//
// # Concurrency
//
// The pipeline itself is pure and needs no coordination. The write path is
// serialized per user with a mutex so two racing log requests cannot
// interleave a stale read window with a half-written overwrite, and
// read-triggered repairs are deduplicated per user via singleflight.
// Different users never share mutable state.
type Manager struct {
	store   Store
	metrics *observability.TrendMetrics
	logger  *slog.Logger

	// now is injected for tests; defaults to time.Now.
	now func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager over the given store.
//
// metrics may be nil (no instrumentation, used by tests); logger nil falls
// back to slog.Default().
func NewManager(store Store, metrics *observability.TrendMetrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// userLock returns the per-user write mutex, creating it on first use.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// =============================================================================
// Write Path
// =============================================================================

// RecordObservation upserts one weight entry and recomputes the user's
// window.
//
// The store write failing is propagated; the recompute failing is also
// propagated, but in that case the active-horizon rows have already been
// marked stale so the next read self-heals.
func (m *Manager) RecordObservation(ctx context.Context, userID string, date time.Time, weightGrams int64, timeZone string) error {
	if err := m.store.PutObservation(ctx, userID, date, weightGrams); err != nil {
		return fmt.Errorf("record observation: %w", err)
	}
	if m.metrics != nil {
		m.metrics.ObservationsLoggedTotal.Inc()
	}
	today := ResolveToday(timeZone, m.now())
	return m.Recompute(ctx, userID, today, observability.TriggerWrite)
}

// Recompute runs the write path for one user: fetch the bounded model
// window, run the pipeline, and overwrite the active-horizon rows.
//
// On any failure after the fetch begins, every active-horizon row is marked
// stale before the error is returned. A half-written window must never
// masquerade as fresh; the stale marker guarantees the next read triggers a
// full recompute instead of serving mixed data.
func (m *Manager) Recompute(ctx context.Context, userID string, today time.Time, trigger string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := tracer.Start(ctx, "trend.recompute")
	defer span.End()
	start := time.Now()

	err := m.recomputeLocked(ctx, userID, today)

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusError
	}
	if m.metrics != nil {
		m.metrics.RecomputesTotal.WithLabelValues(trigger, status).Inc()
		m.metrics.RecomputeDurationSeconds.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	}
	return err
}

func (m *Manager) recomputeLocked(ctx context.Context, userID string, today time.Time) error {
	window := NewWindow(today)

	// Bounded fetch: the model window only, never full history.
	obs, err := m.store.FetchObservations(ctx, userID, window.ModelStart(), window.Today)
	if err != nil {
		m.markWindowStale(ctx, userID, window)
		return fmt.Errorf("fetch observations for recompute: %w", err)
	}

	output := estimator.Run(obs)
	rows := materializedRows(output, window)

	if err := m.store.UpsertTrendRows(ctx, userID, rows); err != nil {
		m.markWindowStale(ctx, userID, window)
		return fmt.Errorf("upsert trend rows: %w", err)
	}

	meta := datatypes.TrendMeta{
		WeeklyRateGramsPerWeek: datatypes.KgToGrams(output.WeeklyRateKgPerWeek),
		Volatility:             output.Volatility,
		ComputedAtDay:          datatypes.DayKey(window.Today),
	}
	if err := m.store.PutTrendMeta(ctx, userID, meta); err != nil {
		m.markWindowStale(ctx, userID, window)
		return fmt.Errorf("put trend meta: %w", err)
	}

	if m.metrics != nil {
		m.metrics.RowsMaterializedTotal.Add(float64(len(rows)))
	}
	m.logger.Debug("window recomputed",
		"user_id", userID,
		"observations", len(obs),
		"rows", len(rows),
	)
	return nil
}

// markWindowStale is the failure side effect of the write path. It is best
// effort: if even the stale marking fails, the error is logged and the
// original failure still propagates; the next read re-detects the
// inconsistency through the missing-row check.
func (m *Manager) markWindowStale(ctx context.Context, userID string, window Window) {
	if err := m.store.MarkStale(ctx, userID, window.ActiveStart(), window.Today); err != nil {
		m.logger.Error("failed to mark window stale after recompute failure",
			"user_id", userID,
			"error", err.Error(),
		)
		return
	}
	if m.metrics != nil {
		m.metrics.StaleMarksTotal.Inc()
	}
}

// materializedRows derives the persisted subset of a pipeline output: one
// gram-denominated row per trend point inside the active horizon. Warmup
// points are model context only and never persisted.
func materializedRows(output datatypes.ModelOutput, window Window) []datatypes.TrendRow {
	activeStartMs := window.ActiveStart().UnixMilli()
	rows := make([]datatypes.TrendRow, 0, len(output.Points))
	for _, p := range output.Points {
		if p.TimestampMs < activeStartMs {
			continue
		}
		rows = append(rows, datatypes.TrendRow{
			Date:             datatypes.DayKey(time.UnixMilli(p.TimestampMs).UTC()),
			TrendWeightGrams: datatypes.KgToGrams(p.TrendWeightKg),
			TrendStdGrams:    datatypes.KgToGrams(p.TrendStdKg),
			CILowerGrams:     datatypes.KgToGrams(p.Lower95Kg),
			CIUpperGrams:     datatypes.KgToGrams(p.Upper95Kg),
		})
	}
	return rows
}

// =============================================================================
// Read Path
// =============================================================================

// TrendDataPoint is one served trend value, kilogram domain. Display-unit
// conversion is the HTTP layer's job.
type TrendDataPoint struct {
	Date          string
	TrendWeightKg float64
	TrendStdKg    float64
	CILowerKg     float64
	CIUpperKg     float64

	// Fallback marks a raw-value passthrough point (below the active
	// horizon): trend equals the observed weight, std 0, collapsed CI.
	Fallback bool
}

// TrendData is the assembled read response, kilogram domain.
type TrendData struct {
	Points              []TrendDataPoint
	WeeklyRateKgPerWeek float64
	Volatility          datatypes.Volatility
	TotalPoints         int
	TotalSpanDays       int
}

// GetTrend serves the trend for [from, to], repairing staleness first.
//
// # Description
//
// Resolves "today" in the caller's time zone (UTC fallback), checks the
// active horizon for missing or stale rows, synchronously recomputes the
// window if any are found, then assembles the response:
//
//   - Dates inside the active horizon come from materialized rows.
//   - Dates below it are served as raw-weight passthrough with std 0; those
//     rows are never checked or recomputed, and their absence from the trend
//     store is not an error.
//
// Every in-range date that has an observation gets a value; the read path
// never returns a null trend.
func (m *Manager) GetTrend(ctx context.Context, userID string, from, to time.Time, timeZone string) (TrendData, error) {
	ctx, span := tracer.Start(ctx, "trend.read")
	defer span.End()

	today := ResolveToday(timeZone, m.now())
	window := NewWindow(today)

	if !to.Before(window.ActiveStart()) {
		if err := m.ensureFresh(ctx, userID, window); err != nil {
			return TrendData{}, err
		}
	}

	var points []TrendDataPoint

	// Raw passthrough below the active horizon.
	if from.Before(window.ActiveStart()) {
		fallbackTo := to
		if !fallbackTo.Before(window.ActiveStart()) {
			fallbackTo = window.ActiveStart().AddDate(0, 0, -1)
		}
		fallback, err := m.fallbackPoints(ctx, userID, from, fallbackTo)
		if err != nil {
			return TrendData{}, err
		}
		points = append(points, fallback...)
	}

	// Materialized rows inside the horizon.
	if !to.Before(window.ActiveStart()) {
		rowFrom := from
		if rowFrom.Before(window.ActiveStart()) {
			rowFrom = window.ActiveStart()
		}
		rowTo := to
		if rowTo.After(window.Today) {
			rowTo = window.Today
		}
		rows, err := m.store.ReadTrendRows(ctx, userID, rowFrom, rowTo)
		if err != nil {
			return TrendData{}, fmt.Errorf("read trend rows: %w", err)
		}
		for _, row := range rows {
			points = append(points, TrendDataPoint{
				Date:          row.Date,
				TrendWeightKg: datatypes.GramsToKg(row.TrendWeightGrams),
				TrendStdKg:    datatypes.GramsToKg(row.TrendStdGrams),
				CILowerKg:     datatypes.GramsToKg(row.CILowerGrams),
				CIUpperKg:     datatypes.GramsToKg(row.CIUpperGrams),
			})
		}
	}

	data := TrendData{
		Points:      points,
		TotalPoints: len(points),
	}
	if meta, ok, err := m.store.ReadTrendMeta(ctx, userID); err != nil {
		return TrendData{}, fmt.Errorf("read trend meta: %w", err)
	} else if ok {
		data.WeeklyRateKgPerWeek = datatypes.GramsToKg(meta.WeeklyRateGramsPerWeek)
		data.Volatility = meta.Volatility
	} else {
		data.Volatility = datatypes.VolatilityLow
	}
	if len(points) >= 2 {
		first, errFirst := time.Parse(datatypes.DayKeyLayout, points[0].Date)
		last, errLast := time.Parse(datatypes.DayKeyLayout, points[len(points)-1].Date)
		if errFirst == nil && errLast == nil {
			data.TotalSpanDays = daysBetween(first, last)
		}
	}
	return data, nil
}

// ensureFresh repairs the active horizon if any expected row is missing or
// stale. Concurrent readers for the same user share one repair.
func (m *Manager) ensureFresh(ctx context.Context, userID string, window Window) error {
	needed, err := m.needsRecompute(ctx, userID, window)
	if err != nil {
		return err
	}
	if !needed {
		return nil
	}
	_, err, _ = m.group.Do(userID, func() (interface{}, error) {
		return nil, m.Recompute(ctx, userID, window.Today, observability.TriggerRead)
	})
	return err
}

// needsRecompute reports whether the active horizon has a stale row or an
// observation day with no materialized row. Only [activeStart, today] is
// ever checked; below-horizon rows do not exist as far as the read path is
// concerned.
func (m *Manager) needsRecompute(ctx context.Context, userID string, window Window) (bool, error) {
	rows, err := m.store.ReadTrendRows(ctx, userID, window.ActiveStart(), window.Today)
	if err != nil {
		return false, fmt.Errorf("check trend rows: %w", err)
	}
	fresh := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Stale {
			return true, nil
		}
		fresh[row.Date] = true
	}

	obs, err := m.store.FetchObservations(ctx, userID, window.ActiveStart(), window.Today)
	if err != nil {
		return false, fmt.Errorf("check observations: %w", err)
	}
	for _, o := range obs {
		day := datatypes.DayKey(time.UnixMilli(o.TimestampMs).UTC())
		if !fresh[day] {
			return true, nil
		}
	}
	return false, nil
}

// fallbackPoints serves [from, to] below the active horizon as raw-value
// passthrough: trend equals the observed weight, std 0, CI collapsed onto
// the weight. Explicitly not an error path.
func (m *Manager) fallbackPoints(ctx context.Context, userID string, from, to time.Time) ([]TrendDataPoint, error) {
	obs, err := m.store.FetchObservations(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch fallback observations: %w", err)
	}
	points := make([]TrendDataPoint, 0, len(obs))
	for _, o := range obs {
		if !o.Usable() {
			continue
		}
		// Round through grams so fallback and materialized values share
		// one fixed-point grid.
		kg := datatypes.GramsToKg(datatypes.KgToGrams(o.WeightKg))
		points = append(points, TrendDataPoint{
			Date:          datatypes.DayKey(time.UnixMilli(o.TimestampMs).UTC()),
			TrendWeightKg: kg,
			TrendStdKg:    0,
			CILowerKg:     kg,
			CIUpperKg:     kg,
			Fallback:      true,
		})
	}
	if m.metrics != nil && len(points) > 0 {
		m.metrics.FallbackPointsTotal.Add(float64(len(points)))
	}
	return points, nil
}
