// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command trendd starts the weight trend API server.
//
// Configuration is via environment variables:
//
//	TREND_PORT                    HTTP listen port (default 12230)
//	TREND_DATA_PATH               badger data directory (default ~/.aleutianvital/data)
//	TREND_IN_MEMORY               "true" runs without persistence
//	TREND_DEBUG                   "true" enables gin debug mode
//	TREND_LOG_DIR                 optional directory for JSON log files
//	OTEL_EXPORTER_OTLP_ENDPOINT   OTLP collector address; empty disables export
//
// Usage:
//
//	go run ./cmd/trendd
//	TREND_PORT=9000 TREND_IN_MEMORY=true go run ./cmd/trendd
//
// Example requests:
//
//	# Log a weight
//	curl -X POST http://localhost:12230/v1/users/local-user/observations \
//	  -H "Content-Type: application/json" \
//	  -d '{"date": "2025-06-01", "weight": 80.4, "unit": "kg"}'
//
//	# Read the trend
//	curl "http://localhost:12230/v1/users/local-user/trend?from=2025-03-01&to=2025-06-01&unit=kg"
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/AleutianAI/AleutianVital/pkg/logging"
	"github.com/AleutianAI/AleutianVital/services/trend"
)

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using fallback", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvBool(key string) bool {
	return os.Getenv(key) == "true"
}

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("TREND_LOG_DIR"),
		Service: "trendd",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := trend.Config{
		Port:         getEnvInt("TREND_PORT", 12230),
		DataPath:     getEnvString("TREND_DATA_PATH", "~/.aleutianvital/data"),
		InMemory:     getEnvBool("TREND_IN_MEMORY"),
		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Debug:        getEnvBool("TREND_DEBUG"),
		Logger:       logger.Slog(),
	}
	cfg.DataPath = expandHome(cfg.DataPath)

	svc, err := trend.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize trend service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("trend service exited: %v", err)
	}
}

// expandHome expands a leading ~ in the data path.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
