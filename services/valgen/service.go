// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package valgen provides the value-generation service for feedback-guided
// fuzzing.
//
// Instrumented programs connect over a WebSocket session and ask, at each
// decision point, for a uniformly random value within typed bounds. Every
// answered request advances the session's cursor through the shared
// execution tree, and the final exit message labels the reached node with
// the run's outcome. The accumulated tree is exported as fixed-width
// training examples for the bias model.
package valgen

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KodiakAI/KodiakFuzz/services/valgen/dataset"
	"github.com/KodiakAI/KodiakFuzz/services/valgen/exetree"
	"github.com/KodiakAI/KodiakFuzz/services/valgen/telemetry"
	"github.com/KodiakAI/KodiakFuzz/services/valgen/wire"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig configures the valgen service.
type ServiceConfig struct {
	// Seed seeds the process-wide pseudorandom source. The same seed and
	// the same request sequence reproduce the same generated values.
	Seed uint64

	// JournalPath is the directory for the execution tree journal.
	// Empty disables persistence (the tree lives only in memory).
	JournalPath string

	// JournalInMemory backs the journal with an in-memory BadgerDB.
	// Useful for testing the journal path without disk I/O.
	JournalInMemory bool

	// AllowDegraded lets the service start even if the journal's storage
	// cannot be opened.
	AllowDegraded bool

	// Logger for service operations. Default: slog.Default().
	Logger *slog.Logger

	// Metrics is the optional pre-registered metric set. Nil disables
	// metric recording.
	Metrics *telemetry.Metrics
}

// DefaultServiceConfig returns defaults suitable for local runs: seed 1,
// no persistence.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Seed: 1,
	}
}

// Service is the value-generation server.
//
// It owns the execution tree, the single pseudorandom source, and the
// optional journal and run recorder. One mutex is the tree-mutation
// boundary: sessions serialize FindOrAddEdge and outcome writes behind it,
// and the exporter takes it for a point-in-time snapshot.
//
// Thread Safety: safe for concurrent use by many session handlers.
type Service struct {
	config  ServiceConfig
	logger  *slog.Logger
	tree    *exetree.Tree
	sampler *Sampler
	journal *exetree.Journal
	metrics *telemetry.Metrics

	recorder *RunRecorder

	// mu is the single tree-mutation boundary.
	mu sync.Mutex

	exportSF singleflight.Group

	startedAt time.Time

	sessionsTotal   atomic.Int64
	activeSessions  atomic.Int64
	valuesGenerated atomic.Int64
	malformedTotal  atomic.Int64
	unsupported     atomic.Int64
	winsTotal       atomic.Int64
}

// New creates a service, rebuilding the execution tree from the journal when
// one is configured.
//
// Outputs:
//
//	*Service - The ready service. Call Close() on shutdown.
//	error - Non-nil if the journal cannot be opened or replayed.
func New(cfg ServiceConfig) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "valgen"))

	s := &Service{
		config:    cfg,
		logger:    logger,
		sampler:   NewSampler(cfg.Seed),
		metrics:   cfg.Metrics,
		startedAt: time.Now(),
	}

	if cfg.JournalPath != "" || cfg.JournalInMemory {
		jcfg := exetree.DefaultJournalConfig()
		jcfg.Path = cfg.JournalPath
		jcfg.InMemory = cfg.JournalInMemory
		jcfg.AllowDegraded = cfg.AllowDegraded
		jcfg.Logger = logger

		journal, err := exetree.OpenJournal(jcfg)
		if err != nil {
			return nil, err
		}
		s.journal = journal

		tree, err := exetree.Rebuild(context.Background(), journal)
		if err != nil {
			journal.Close()
			return nil, err
		}
		s.tree = tree
		logger.Info("execution tree rebuilt from journal",
			slog.Int("nodes", tree.Size()),
			slog.Uint64("last_seq", journal.Stats().LastSeqNum))
	} else {
		s.tree = exetree.New()
	}

	s.recorder = NewRunRecorder(logger)
	if s.recorder != nil {
		s.recorder.Start(s.Snapshot)
	}

	logger.Info("valgen service ready", slog.Uint64("seed", cfg.Seed))
	return s, nil
}

// HandleMessage answers one protocol request for the given session.
//
// The dispatch follows the wire contract: malformed input (truncated parts,
// wrong part widths, traffic after exit) answers [22] and changes nothing;
// an unknown type tag or inverted bounds answers [23]; well-formed requests
// answer [11, value] or [10, success]. No request kills the session.
func (s *Service) HandleMessage(ctx context.Context, sess *Session, req *wire.Message) *wire.Message {
	flag, ok := req.Byte(0)
	if !ok {
		return s.malformed(sess, "missing is_exit flag")
	}

	if flag == wire.FlagGenerate {
		return s.handleGenerate(ctx, sess, req)
	}
	return s.handleExit(ctx, sess, req)
}

func (s *Service) handleGenerate(ctx context.Context, sess *Session, req *wire.Message) *wire.Message {
	if sess.closed {
		// A generation request after exit is malformed, never silently
		// sampled.
		return s.malformed(sess, "generation request after exit")
	}
	if req.Len() != 5 {
		return s.malformed(sess, "generation request needs 5 parts")
	}

	callSite, ok := req.Uint64(1)
	if !ok {
		return s.malformed(sess, "call-site id must be 8 bytes")
	}
	tagByte, ok := req.Byte(2)
	if !ok {
		return s.malformed(sess, "type tag must be 1 byte")
	}

	tag := wire.TypeTag(tagByte)
	if !tag.Valid() {
		s.unsupported.Add(1)
		s.count(ctx, s.metricOrNil().RequestsTotal, attribute.String("result", "unsupported"))
		s.logger.Debug("unknown type tag",
			slog.String("session_id", sess.ID),
			slog.Int("tag", int(tagByte)))
		return wire.Unsupported()
	}

	lo, err := wire.DecodeValue(tag, req.Part(3))
	if err != nil {
		return s.malformed(sess, "bad lower bound")
	}
	hi, err := wire.DecodeValue(tag, req.Part(4))
	if err != nil {
		return s.malformed(sess, "bad upper bound")
	}

	v, err := s.sampler.Between(lo, hi)
	if err != nil {
		// Only inverted bounds reach here; tag problems were caught above.
		s.unsupported.Add(1)
		s.count(ctx, s.metricOrNil().RequestsTotal, attribute.String("result", "rejected"))
		s.logger.Debug("bounds rejected",
			slog.String("session_id", sess.ID),
			slog.String("reason", err.Error()))
		return wire.Unsupported()
	}

	s.advanceCursor(ctx, sess, v)

	s.valuesGenerated.Add(1)
	s.count(ctx, s.metricOrNil().GeneratedValuesTotal, attribute.String("type", tag.String()))
	s.count(ctx, s.metricOrNil().RequestsTotal, attribute.String("result", "value"))

	s.logger.Debug("value generated",
		slog.String("session_id", sess.ID),
		slog.Uint64("call_site", callSite),
		slog.String("type", tag.String()),
		slog.Float64("key", v.Key()))

	return wire.ValueReply(v)
}

// advanceCursor grows the tree by one edge (if new) and moves the session's
// cursor to the chosen child. Tree access runs inside the mutation boundary;
// the journal append happens outside it, since Badger serializes its own
// writes and the replay order is fixed by the sequence number.
func (s *Service) advanceCursor(ctx context.Context, sess *Session, v wire.Value) {
	key := v.Key()

	s.mu.Lock()
	fromID := sess.cursor.ID()
	child, created := s.tree.FindOrAddEdge(sess.cursor, key)
	sess.cursor = child
	s.mu.Unlock()

	if !created {
		return
	}

	s.count(ctx, s.metricOrNil().TreeNodesTotal)
	if s.journal != nil {
		delta := &exetree.EdgeDelta{ParentID: fromID, Key: key, ChildID: child.ID()}
		if err := s.journal.Append(ctx, delta); err != nil {
			s.logger.Warn("journal append failed, tree remains in-memory only",
				slog.String("error", err.Error()))
		}
	}
}

func (s *Service) handleExit(ctx context.Context, sess *Session, req *wire.Message) *wire.Message {
	success, ok := req.Byte(1)
	if req.Len() < 2 || !ok {
		return s.malformed(sess, "exit request needs a success flag")
	}
	if sess.closed {
		return s.malformed(sess, "duplicate exit")
	}

	won := success != 0

	s.mu.Lock()
	sess.cursor.SetMayWin(won)
	nodeID := sess.cursor.ID()
	s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.Append(ctx, &exetree.OutcomeDelta{NodeID: nodeID, MayWin: won}); err != nil {
			s.logger.Warn("journal append failed for outcome",
				slog.String("error", err.Error()))
		}
	}

	sess.closed = true
	if won {
		s.winsTotal.Add(1)
	}
	s.count(ctx, s.metricOrNil().RequestsTotal, attribute.String("result", "exit"))

	s.logger.Info("session exited",
		slog.String("session_id", sess.ID),
		slog.Bool("success", won),
		slog.Uint64("node_id", nodeID))

	return wire.ExitAck(success)
}

func (s *Service) malformed(sess *Session, reason string) *wire.Message {
	s.malformedTotal.Add(1)
	s.count(context.Background(), s.metricOrNil().MalformedTotal)
	s.logger.Debug("malformed request",
		slog.String("session_id", sess.ID),
		slog.String("reason", reason))
	return wire.Malformed()
}

// Examples collects the full training example sequence from a point-in-time
// snapshot of the tree. Concurrent exports deduplicate onto one traversal.
func (s *Service) Examples() []dataset.Example {
	v, _, _ := s.exportSF.Do("export", func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return dataset.Collect(s.tree.Root()), nil
	})
	return v.([]dataset.Example)
}

// Stats is a point-in-time snapshot of service counters for /stats and the
// run recorder.
type Stats struct {
	Seed            uint64    `json:"seed"`
	StartedAt       time.Time `json:"started_at"`
	TreeNodes       int       `json:"tree_nodes"`
	SessionsTotal   int64     `json:"sessions_total"`
	ActiveSessions  int64     `json:"active_sessions"`
	ValuesGenerated int64     `json:"values_generated"`
	Malformed       int64     `json:"malformed_requests"`
	Unsupported     int64     `json:"unsupported_requests"`
	Wins            int64     `json:"wins"`
	JournalDegraded bool      `json:"journal_degraded,omitempty"`
	JournalDeltas   int64     `json:"journal_deltas,omitempty"`
}

// Snapshot returns current service counters.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	nodes := s.tree.Size()
	s.mu.Unlock()

	st := Stats{
		Seed:            s.config.Seed,
		StartedAt:       s.startedAt,
		TreeNodes:       nodes,
		SessionsTotal:   s.sessionsTotal.Load(),
		ActiveSessions:  s.activeSessions.Load(),
		ValuesGenerated: s.valuesGenerated.Load(),
		Malformed:       s.malformedTotal.Load(),
		Unsupported:     s.unsupported.Load(),
		Wins:            s.winsTotal.Load(),
	}
	if s.journal != nil {
		js := s.journal.Stats()
		st.JournalDegraded = js.Degraded
		st.JournalDeltas = js.TotalDeltas
	}
	return st
}

// Close stops the run recorder and syncs and closes the journal.
func (s *Service) Close() error {
	if s.recorder != nil {
		s.recorder.Stop()
	}
	if s.journal != nil {
		if err := s.journal.Sync(); err != nil && err != exetree.ErrJournalClosed {
			s.logger.Warn("journal sync on close", slog.String("error", err.Error()))
		}
		return s.journal.Close()
	}
	return nil
}

// metricOrNil lets call sites read a metric field without a nil check on the
// container; count() tolerates nil instruments.
func (s *Service) metricOrNil() *telemetry.Metrics {
	if s.metrics == nil {
		return &telemetry.Metrics{}
	}
	return s.metrics
}

func (s *Service) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
