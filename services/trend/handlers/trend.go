// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP surface of the trend service.
//
// Handlers are closures over their dependencies and stay thin: parameter
// parsing, unit conversion, and response shaping. All model and
// materialization behavior lives behind the TrendManager interface.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
	"github.com/AleutianAI/AleutianVital/services/trend/materialize"
	"github.com/AleutianAI/AleutianVital/services/trend/middleware"
)

var trendTracer = otel.Tracer("aleutianvital.trend.handlers")

// TrendManager is the slice of the materialization manager the handlers
// consume. Satisfied by *materialize.Manager; tests substitute fakes.
type TrendManager interface {
	GetTrend(ctx context.Context, userID string, from, to time.Time, timeZone string) (materialize.TrendData, error)
	RecordObservation(ctx context.Context, userID string, date time.Time, weightGrams int64, timeZone string) error
}

// TrendPointResponse is one serialized trend point, in the requested unit.
type TrendPointResponse struct {
	Date          string  `json:"date"`
	TrendWeight   float64 `json:"trend_weight"`
	TrendStd      float64 `json:"trend_std"`
	TrendCILower  float64 `json:"trend_ci_lower"`
	TrendCIUpper  float64 `json:"trend_ci_upper"`
}

// TrendMetaResponse summarizes the served range.
type TrendMetaResponse struct {
	WeeklyRate    float64 `json:"weekly_rate"`
	Volatility    string  `json:"volatility"`
	TotalPoints   int     `json:"total_points"`
	TotalSpanDays int     `json:"total_span_days"`
}

// TrendResponse is the full read API payload.
type TrendResponse struct {
	Points []TrendPointResponse `json:"points"`
	Meta   TrendMetaResponse    `json:"meta"`
	Unit   string               `json:"unit"`
}

// GetTrend serves GET /v1/users/:userId/trend.
//
// Query parameters:
//   - from, to: date range, YYYY-MM-DD (required)
//   - unit: kg (default) or lb
//   - tz: IANA time zone for "today" resolution; invalid zones fall back
//     to UTC inside the manager rather than failing the request
//
// Every in-range date with an observation gets a non-null trend value:
// modeled inside the active horizon, raw passthrough below it. Unit
// conversion happens here and only here.
func GetTrend(manager TrendManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := trendTracer.Start(c.Request.Context(), "handlers.get_trend")
		defer span.End()

		userID := c.Param("userId")
		from, err := time.Parse(datatypes.DayKeyLayout, c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing 'from' date, want YYYY-MM-DD"})
			return
		}
		to, err := time.Parse(datatypes.DayKeyLayout, c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing 'to' date, want YYYY-MM-DD"})
			return
		}
		if to.Before(from) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must not precede 'from'"})
			return
		}
		unit := c.DefaultQuery("unit", datatypes.UnitKg)
		if unit != datatypes.UnitKg && unit != datatypes.UnitLb {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported unit, want kg or lb"})
			return
		}

		data, err := manager.GetTrend(ctx, userID, from, to, c.Query("tz"))
		if err != nil {
			slog.Error("trend read failed", "request_id", middleware.GetRequestID(c),
				"user_id", userID, "error", err.Error())
			c.JSON(http.StatusBadGateway, gin.H{"error": "trend store unavailable"})
			return
		}

		points := make([]TrendPointResponse, len(data.Points))
		for i, p := range data.Points {
			points[i] = TrendPointResponse{
				Date:         p.Date,
				TrendWeight:  datatypes.FromKg(p.TrendWeightKg, unit),
				TrendStd:     datatypes.FromKg(p.TrendStdKg, unit),
				TrendCILower: datatypes.FromKg(p.CILowerKg, unit),
				TrendCIUpper: datatypes.FromKg(p.CIUpperKg, unit),
			}
		}

		c.JSON(http.StatusOK, TrendResponse{
			Points: points,
			Meta: TrendMetaResponse{
				WeeklyRate:    datatypes.FromKg(data.WeeklyRateKgPerWeek, unit),
				Volatility:    string(data.Volatility),
				TotalPoints:   data.TotalPoints,
				TotalSpanDays: data.TotalSpanDays,
			},
			Unit: unit,
		})
	}
}
