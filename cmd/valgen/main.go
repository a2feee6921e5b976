// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command valgen starts the Kodiak value-generation server.
//
// The server speaks the binary session protocol over WebSocket and serves
// the accumulated execution tree as training data.
//
// Usage:
//
//	go run ./cmd/valgen
//	go run ./cmd/valgen -port 9090 -seed 42
//	go run ./cmd/valgen -journal ~/.kodiak/valgen/journal
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/valgen/health
//
//	# Service counters
//	curl http://localhost:8080/v1/valgen/stats | jq
//
//	# Export the training dataset
//	curl http://localhost:8080/v1/valgen/dataset?format=csv
//
// Telemetry exporters are selected through OTEL_TRACES_EXPORTER and
// OTEL_METRICS_EXPORTER; with the prometheus metrics exporter the scrape
// endpoint is /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/KodiakAI/KodiakFuzz/cmd/valgen/config"
	"github.com/KodiakAI/KodiakFuzz/pkg/logging"
	"github.com/KodiakAI/KodiakFuzz/services/valgen"
	"github.com/KodiakAI/KodiakFuzz/services/valgen/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("valgen: %v", err)
	}
}

func run() error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	port := flag.Int("port", config.Global.Server.Port, "Port to listen on")
	seed := flag.Uint64("seed", config.Global.Server.Seed, "Seed for the value source")
	journal := flag.String("journal", config.Global.Journal.Path, "Execution tree journal directory (empty disables persistence)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	logLevel := logging.LevelInfo
	if *debug {
		logLevel = logging.LevelDebug
	} else if config.Global.Logging.Level != "" {
		logLevel = parseLevel(config.Global.Logging.Level)
	}
	logger := logging.New(logging.Config{
		Level:   logLevel,
		LogDir:  config.Global.Logging.Dir,
		Service: "valgen",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx := context.Background()
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("valgen"))
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	svcCfg := valgen.DefaultServiceConfig()
	svcCfg.Seed = *seed
	svcCfg.JournalPath = *journal
	svcCfg.AllowDegraded = config.Global.Journal.AllowDegraded
	svcCfg.Logger = logger.Slog()
	svcCfg.Metrics = metrics

	svc, err := valgen.New(svcCfg)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Close()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if *debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("valgen-service"))

	v1 := router.Group("/v1")
	valgen.RegisterRoutes(v1, valgen.NewHandlers(svc))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting valgen server",
			slog.String("address", srv.Addr),
			slog.Uint64("seed", *seed),
			slog.String("journal", *journal))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("shutting down valgen server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
