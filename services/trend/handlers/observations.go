// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVital/services/trend/datatypes"
	"github.com/AleutianAI/AleutianVital/services/trend/middleware"
)

// ObservationRequest is the write API body. Weight is interpreted in the
// given unit (kg when omitted) and converted before it reaches storage.
type ObservationRequest struct {
	Date     string  `json:"date" binding:"required"`
	Weight   float64 `json:"weight" binding:"required"`
	Unit     string  `json:"unit"`
	TimeZone string  `json:"tz"`
}

// LogObservation serves POST /v1/users/:userId/observations.
//
// One observation per calendar day; a second write for the same date
// replaces the first. The trend is recomputed synchronously so the next
// read reflects this observation. A store failure still rejects the
// request, but a recompute failure does not: the affected rows are
// marked stale and repaired on the next read.
func LogObservation(manager TrendManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := trendTracer.Start(c.Request.Context(), "handlers.log_observation")
		defer span.End()

		userID := c.Param("userId")
		var req ObservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
		date, err := time.Parse(datatypes.DayKeyLayout, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'date', want YYYY-MM-DD"})
			return
		}
		weightKg, err := datatypes.ToKg(req.Weight, req.Unit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !isUsableWeight(weightKg) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "weight must be a positive finite number"})
			return
		}

		if err := manager.RecordObservation(ctx, userID, date, datatypes.KgToGrams(weightKg), req.TimeZone); err != nil {
			slog.Error("observation write failed", "request_id", middleware.GetRequestID(c),
				"user_id", userID, "date", req.Date, "error", err.Error())
			c.JSON(http.StatusBadGateway, gin.H{"error": "observation store unavailable"})
			return
		}

		slog.Info("observation logged", "request_id", middleware.GetRequestID(c),
			"user_id", userID, "date", req.Date)
		c.JSON(http.StatusCreated, gin.H{"status": "recorded", "date": req.Date})
	}
}

func isUsableWeight(kg float64) bool {
	return !math.IsNaN(kg) && !math.IsInf(kg, 0) && kg > 0
}
