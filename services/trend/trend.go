// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trend assembles the weight trend service: badger-backed
// observation and trend-row storage, the materialization manager, the
// HTTP API, and the observability wiring.
package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianVital/pkg/extensions"
	"github.com/AleutianAI/AleutianVital/services/trend/materialize"
	"github.com/AleutianAI/AleutianVital/services/trend/middleware"
	"github.com/AleutianAI/AleutianVital/services/trend/observability"
	"github.com/AleutianAI/AleutianVital/services/trend/routes"
	badgerstore "github.com/AleutianAI/AleutianVital/services/trend/storage/badger"
)

// Config carries everything the service needs to start.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// DataPath is the badger data directory. Ignored when InMemory is set.
	DataPath string

	// InMemory runs the store without disk persistence. Data is lost on
	// restart; intended for tests and demos.
	InMemory bool

	// OTelEndpoint is the OTLP/gRPC collector address (host:port). Empty
	// disables trace export; spans are still created but never leave the
	// process.
	OTelEndpoint string

	// AuthProvider validates bearer tokens. Nil selects the permissive
	// local-user provider.
	AuthProvider extensions.AuthProvider

	// Debug switches gin into debug mode with request logging.
	Debug bool

	// Logger receives service logs. Nil falls back to slog.Default().
	Logger *slog.Logger
}

// Service owns the store, the manager, and the HTTP server.
type Service struct {
	cfg      Config
	logger   *slog.Logger
	store    *badgerstore.TrendStore
	manager  *materialize.Manager
	registry *prometheus.Registry
	router   *gin.Engine
}

// New wires the service together. The returned Service holds an open
// badger store; call Close when done, or let Run do it on shutdown.
func New(cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	storeCfg := badgerstore.DefaultConfig(cfg.DataPath)
	if cfg.InMemory {
		storeCfg = badgerstore.InMemoryConfig()
	}
	storeCfg.Logger = logger
	store, err := badgerstore.NewTrendStore(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("opening trend store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewTrendMetrics(registry)

	manager := materialize.NewManager(store, metrics, logger)

	authProvider := cfg.AuthProvider
	if authProvider == nil {
		authProvider = &extensions.NopAuthProvider{}
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("trend-service"))
	router.Use(middleware.RequestID())

	routes.SetupRoutes(router, manager, authProvider, registry)

	return &Service{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		manager:  manager,
		registry: registry,
		router:   router,
	}, nil
}

// Manager exposes the materialization manager, mostly for tests.
func (s *Service) Manager() *materialize.Manager {
	return s.manager
}

// Router exposes the configured gin engine, mostly for tests.
func (s *Service) Router() *gin.Engine {
	return s.router
}

// Close releases the badger store.
func (s *Service) Close() error {
	return s.store.Close()
}

// Run starts the HTTP server and blocks until ctx is canceled, then
// shuts down gracefully: in-flight requests get ten seconds to finish,
// the trace exporter is flushed, and the store is closed.
func (s *Service) Run(ctx context.Context) error {
	shutdownTracer, err := s.initTracer(ctx)
	if err != nil {
		return fmt.Errorf("setting up OTLP tracer: %w", err)
	}
	defer shutdownTracer(context.Background())
	defer s.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting trend service", "port", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down trend service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// initTracer configures the global OTLP trace pipeline. Returns a
// shutdown func that flushes the exporter; a no-op when export is
// disabled.
func (s *Service) initTracer(ctx context.Context) (func(context.Context), error) {
	if s.cfg.OTelEndpoint == "" {
		s.logger.Info("OTLP endpoint not set, trace export disabled")
		return func(context.Context) {}, nil
	}

	conn, err := grpc.NewClient(s.cfg.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("trend-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}
