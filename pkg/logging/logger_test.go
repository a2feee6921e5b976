// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo}, // Unknown defaults to Info
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.toSlogLevel(); got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	defer logger.Close()

	if logger.slog == nil {
		t.Fatal("logger.slog is nil")
	}
	if logger.file != nil {
		t.Error("file should be nil without LogDir")
	}
}

func TestNew_WithLogDir(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		LogDir:  dir,
		Service: "valgen",
	})

	logger.Info("file test message", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	filename := "valgen_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file test message") {
		t.Errorf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"service":"valgen"`) {
		t.Errorf("log file missing service attribute: %s", data)
	}
}

func TestNew_WithLogDir_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	logger := New(Config{LogDir: dir, Service: "valgen", Quiet: true})
	logger.Info("hello")
	logger.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	defer logger.Close()

	if logger.config.Service != "kodiak" {
		t.Errorf("Service = %q, want %q", logger.config.Service, "kodiak")
	}
	if logger.config.Level != LevelInfo {
		t.Errorf("Level = %v, want %v", logger.config.Level, LevelInfo)
	}
}

func TestLogger_ExporterReceivesEntries(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Quiet:    true,
		Service:  "valgen",
		Exporter: exporter,
	})
	defer logger.Close()

	logger.Info("exported message", "key", "value")

	// Export is async; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exporter.Entries()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := exporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Message != "exported message" {
		t.Errorf("Message = %q", entries[0].Message)
	}
	if entries[0].Service != "valgen" {
		t.Errorf("Service = %q", entries[0].Service)
	}
	if entries[0].Attrs["key"] != "value" {
		t.Errorf("Attrs = %v", entries[0].Attrs)
	}
}

func TestLogger_ExporterLevelFiltering(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelWarn,
		Quiet:    true,
		Exporter: exporter,
	})
	defer logger.Close()

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exporter.Entries()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := exporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Level != LevelWarn {
		t.Errorf("Level = %v, want %v", entries[0].Level, LevelWarn)
	}
}

func TestLogger_With_SharesResources(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "valgen", Quiet: true})
	defer logger.Close()

	child := logger.With("session_id", "abc")
	if child.file != logger.file {
		t.Error("child logger should share the file handle")
	}
	if child == logger {
		t.Error("With() must return a new logger")
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	logger := New(Config{Quiet: true, Exporter: NewBufferedExporter()})
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("concurrent", "goroutine", n, "iter", j)
			}
		}(i)
	}
	wg.Wait()
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.kodiak/logs", filepath.Join(home, ".kodiak/logs")},
		{"/var/log", "/var/log"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArgsToMap(t *testing.T) {
	got := argsToMap([]any{"key1", "value1", "key2", 123})
	if got["key1"] != "value1" || got["key2"] != 123 {
		t.Errorf("argsToMap = %v", got)
	}

	// Odd trailing arg is dropped.
	got = argsToMap([]any{"key1", "value1", "dangling"})
	if len(got) != 1 {
		t.Errorf("argsToMap with dangling key = %v", got)
	}

	// Non-string keys are skipped.
	got = argsToMap([]any{42, "value"})
	if len(got) != 0 {
		t.Errorf("argsToMap with int key = %v", got)
	}
}

func TestNopExporter(t *testing.T) {
	e := &NopExporter{}
	if err := e.Export(context.Background(), LogEntry{}); err != nil {
		t.Errorf("Export() error = %v", err)
	}
	if err := e.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestBufferedExporter_EntriesIsCopy(t *testing.T) {
	e := NewBufferedExporter()
	e.Export(context.Background(), LogEntry{Message: "one"})

	entries := e.Entries()
	entries[0].Message = "mutated"

	if e.Entries()[0].Message != "one" {
		t.Error("Entries() must return a copy")
	}
}

func TestWriterExporter(t *testing.T) {
	var sb strings.Builder
	e := NewWriterExporter(&sb)

	err := e.Export(context.Background(), LogEntry{
		Timestamp: time.Now(),
		Level:     LevelInfo,
		Message:   "written",
		Attrs:     map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(sb.String(), "written") {
		t.Errorf("output missing message: %s", sb.String())
	}
}
