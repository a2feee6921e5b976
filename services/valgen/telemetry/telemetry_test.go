// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "valgen" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "valgen")
	}
	if cfg.TraceExporter != "otlp" {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, "otlp")
	}
	if cfg.MetricExporter != "prometheus" {
		t.Errorf("MetricExporter = %q, want %q", cfg.MetricExporter, "prometheus")
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.OTLPEndpoint, "localhost:4317")
	}
}

func TestInit_NilContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"

	_, err := Init(nil, cfg)
	if err != ErrNilContext {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_NoopExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if shutdown == nil {
		t.Fatal("shutdown function is nil")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_StdoutExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	tracer := otel.Tracer("test")
	if tracer == nil {
		t.Error("tracer is nil")
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "unknown_exporter"

	_, err := Init(context.Background(), cfg)
	if err == nil {
		t.Error("Init() with unknown exporter should fail")
	}
	if !strings.Contains(err.Error(), "unknown exporter") {
		t.Errorf("error = %v, want to contain 'unknown exporter'", err)
	}
}

func TestLoggerWithTrace_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	result := LoggerWithTrace(context.Background(), logger)

	result.Info("test message")
	output := buf.String()

	if strings.Contains(output, "trace_id") {
		t.Errorf("output should not contain trace_id when no span: %s", output)
	}
}
