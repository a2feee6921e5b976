// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package valgen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// recorderInterval is how often the run recorder samples service counters.
const recorderInterval = 30 * time.Second

// RunRecorder periodically writes service counter snapshots to InfluxDB so
// long fuzzing campaigns can be charted: tree growth, generation throughput,
// win rate over hours or days.
//
// Thread Safety: Start and Stop must be called from the same goroutine that
// created the recorder; the sampling loop runs on its own goroutine.
type RunRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRunRecorder creates a recorder from INFLUXDB_* environment variables.
//
// Returns nil when INFLUXDB_URL is unset: recording is opt-in, and a nil
// recorder simply means no run history is kept. Org and bucket default to
// "kodiak-fuzz" and "fuzzing-runs".
func NewRunRecorder(logger *slog.Logger) *RunRecorder {
	url := os.Getenv("INFLUXDB_URL")
	if url == "" {
		return nil
	}

	token := os.Getenv("INFLUXDB_TOKEN")

	org := os.Getenv("INFLUXDB_ORG")
	if org == "" {
		org = "kodiak-fuzz"
	}

	bucket := os.Getenv("INFLUXDB_BUCKET")
	if bucket == "" {
		bucket = "fuzzing-runs"
	}

	if logger == nil {
		logger = slog.Default()
	}

	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteAPIBlocking(org, bucket)

	logger.Info("run recorder enabled",
		slog.String("url", url),
		slog.String("org", org),
		slog.String("bucket", bucket))

	return &RunRecorder{
		client:   client,
		writeAPI: writeAPI,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sampling loop. The snapshot function is called once per
// interval; it must be safe to call from another goroutine.
func (r *RunRecorder) Start(snapshot func() Stats) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(recorderInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.done:
				// One final sample so short runs leave a trace.
				r.write(snapshot())
				return
			case <-ticker.C:
				r.write(snapshot())
			}
		}
	}()
}

func (r *RunRecorder) write(st Stats) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := influxdb2.NewPointWithMeasurement("valgen_run").
		AddTag("seed", fmt.Sprintf("%d", st.Seed)).
		AddField("tree_nodes", st.TreeNodes).
		AddField("sessions_total", st.SessionsTotal).
		AddField("active_sessions", st.ActiveSessions).
		AddField("values_generated", st.ValuesGenerated).
		AddField("malformed_requests", st.Malformed).
		AddField("unsupported_requests", st.Unsupported).
		AddField("wins", st.Wins).
		AddField("journal_degraded", st.JournalDegraded).
		SetTime(time.Now())

	if err := r.writeAPI.WritePoint(ctx, p); err != nil {
		r.logger.Warn("run recorder write failed", slog.String("error", err.Error()))
	}
}

// Stop halts the sampling loop, flushes a final point, and closes the client.
// Safe to call multiple times.
func (r *RunRecorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.client.Close()
	})
}
