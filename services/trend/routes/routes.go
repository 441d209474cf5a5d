// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianVital/pkg/extensions"
	"github.com/AleutianAI/AleutianVital/services/trend/handlers"
	"github.com/AleutianAI/AleutianVital/services/trend/middleware"
)

// SetupRoutes registers the trend service API on the given router.
//
// /health and /metrics are unauthenticated; everything under /v1 requires
// a valid bearer token, and user-scoped routes additionally require the
// caller to own the series (or hold the admin role).
func SetupRoutes(router *gin.Engine, manager handlers.TrendManager,
	authProvider extensions.AuthProvider, registry *prometheus.Registry) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authProvider))
	{
		users := v1.Group("/users/:userId")
		users.Use(middleware.RequireUserAccess())
		{
			users.GET("/trend", handlers.GetTrend(manager))
			users.POST("/observations", handlers.LogObservation(manager))
		}
	}
}
