// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package exetree

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KodiakAI/KodiakFuzz/services/valgen/storage/badger"
	dgbadger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrJournalClosed is returned when operations are called on a closed journal.
	ErrJournalClosed = errors.New("journal is closed")

	// ErrJournalCorrupted is returned when a journal entry fails its CRC check.
	ErrJournalCorrupted = errors.New("journal entry corrupted (CRC mismatch)")

	// ErrJournalDegraded is returned when the journal is operating without storage.
	ErrJournalDegraded = errors.New("journal operating in degraded mode")

	// ErrJournalSequenceGap is returned when replay detects missing sequence numbers.
	ErrJournalSequenceGap = errors.New("journal sequence number gap detected")

	// ErrNilDelta is returned when attempting to append a nil delta.
	ErrNilDelta = errors.New("delta must not be nil")

	// ErrReplayConflict is returned when a replayed delta cannot be applied
	// to the tree (duplicate IDs, unknown parent).
	ErrReplayConflict = errors.New("replayed delta conflicts with tree state")
)

// Delta is one durable tree mutation. The journal records exactly two kinds:
// edge creation and outcome updates. Replaying all deltas in sequence order
// reconstructs the tree byte for byte, including child insertion order.
type Delta interface {
	// Kind names the delta type for logs and spans.
	Kind() string

	// Apply replays the mutation into a tree.
	Apply(t *Tree) error
}

// EdgeDelta records the creation of a new edge. Appended only when
// FindOrAddEdge actually created a node, never on re-traversal.
type EdgeDelta struct {
	ParentID uint64
	Key      float64
	ChildID  uint64
}

func (d *EdgeDelta) Kind() string { return "edge" }

func (d *EdgeDelta) Apply(t *Tree) error {
	parent, ok := t.NodeByID(d.ParentID)
	if !ok {
		return fmt.Errorf("%w: edge delta references unknown parent %d", ErrReplayConflict, d.ParentID)
	}
	if !t.addEdgeWithID(parent, d.Key, d.ChildID) {
		return fmt.Errorf("%w: edge %d -> %d (key %v)", ErrReplayConflict, d.ParentID, d.ChildID, d.Key)
	}
	return nil
}

// OutcomeDelta records an outcome write at session exit. Replay applies them
// in order, so last-write-wins survives restarts.
type OutcomeDelta struct {
	NodeID uint64
	MayWin bool
}

func (d *OutcomeDelta) Kind() string { return "outcome" }

func (d *OutcomeDelta) Apply(t *Tree) error {
	node, ok := t.NodeByID(d.NodeID)
	if !ok {
		return fmt.Errorf("%w: outcome delta references unknown node %d", ErrReplayConflict, d.NodeID)
	}
	node.SetMayWin(d.MayWin)
	return nil
}

var deltaTypesRegistered sync.Once

func registerDeltaTypes() {
	deltaTypesRegistered.Do(func() {
		gob.Register(&EdgeDelta{})
		gob.Register(&OutcomeDelta{})
	})
}

// JournalConfig configures the execution tree journal.
type JournalConfig struct {
	// Path is the directory for BadgerDB files. Required for persistent mode.
	Path string

	// SyncWrites enables synchronous writes. Must be true for WAL
	// correctness. Default: true.
	SyncWrites bool

	// AllowDegraded allows startup even if BadgerDB is unavailable. The
	// journal then drops appends and replays nothing. Default: false.
	AllowDegraded bool

	// SkipCorruptedDeltas continues replay past entries that fail their
	// CRC check instead of failing fast. Default: false.
	SkipCorruptedDeltas bool

	// InMemory uses an in-memory BadgerDB (for testing).
	InMemory bool

	// Logger for journal operations. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultJournalConfig returns production defaults.
func DefaultJournalConfig() JournalConfig {
	return JournalConfig{
		SyncWrites: true,
		Logger:     slog.Default(),
	}
}

// Validate checks the configuration.
func (c *JournalConfig) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("path is required for persistent journal")
	}
	return nil
}

// JournalStats contains journal counters.
type JournalStats struct {
	// TotalDeltas is the count of deltas appended this process lifetime.
	TotalDeltas int64

	// TotalBytes is the approximate size of appended journal data.
	TotalBytes int64

	// LastSeqNum is the most recent sequence number.
	LastSeqNum uint64

	// CorruptedCount is the number of corrupted entries seen during replay.
	CorruptedCount int64

	// Degraded indicates the journal is running without storage.
	Degraded bool
}

// Journal is the execution tree's write-ahead log.
//
// Every tree mutation (new edge, outcome write) is appended synchronously to
// BadgerDB with a CRC32 checksum before the generation reply leaves the
// server. On restart, Replay returns all deltas in order so the tree can be
// rebuilt, which is what lets training data accumulate across runs.
//
// Key format: "delta:{seq_num:016d}"
// Value format: [4-byte CRC32][gob-encoded delta]
//
// Thread Safety: safe for concurrent use.
type Journal struct {
	db     *badger.DB
	config JournalConfig
	logger *slog.Logger

	seqNum         atomic.Uint64
	totalDeltas    atomic.Int64
	totalBytes     atomic.Int64
	corruptedCount atomic.Int64
	degraded       atomic.Bool
	closed         atomic.Bool
}

// OpenJournal opens (or creates) a journal at the configured path.
//
// Outputs:
//
//	*Journal - Ready-to-use journal.
//	error - Non-nil if BadgerDB fails to open and AllowDegraded is false.
func OpenJournal(config JournalConfig) (*Journal, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	j := &Journal{
		config: config,
		logger: config.Logger.With(slog.String("component", "journal")),
	}

	dbConfig := badger.Config{
		Path:           config.Path,
		InMemory:       config.InMemory,
		SyncWrites:     config.SyncWrites,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
		Logger:         config.Logger,
	}

	db, err := badger.Open(dbConfig)
	if err != nil {
		if config.AllowDegraded {
			j.logger.Warn("BadgerDB unavailable, journal operating in degraded mode",
				slog.String("path", config.Path),
				slog.String("error", err.Error()))
			j.degraded.Store(true)
			return j, nil
		}
		return nil, fmt.Errorf("open badger: %w", err)
	}
	j.db = db

	if err := j.initSeqNum(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sequence number: %w", err)
	}

	j.logger.Info("journal opened",
		slog.String("path", config.Path),
		slog.Bool("sync_writes", config.SyncWrites),
		slog.Uint64("last_seq_num", j.seqNum.Load()))

	return j, nil
}

const deltaKeyPrefix = "delta:"

func deltaKey(seqNum uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", deltaKeyPrefix, seqNum))
}

// initSeqNum scans for the highest existing sequence number.
func (j *Journal) initSeqNum() error {
	var maxSeq uint64

	err := j.db.WithReadTxn(context.Background(), func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append([]byte(deltaKeyPrefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		it.Seek(seekKey)

		if it.ValidForPrefix([]byte(deltaKeyPrefix)) {
			key := it.Item().Key()
			var seq uint64
			if _, err := fmt.Sscanf(string(key[len(deltaKeyPrefix):]), "%016d", &seq); err == nil {
				maxSeq = seq
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	j.seqNum.Store(maxSeq)
	return nil
}

// encodeEntry encodes a delta as [4-byte CRC32][gob payload].
func encodeEntry(delta Delta) ([]byte, error) {
	registerDeltaTypes()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(&delta); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}

	crc := crc32.ChecksumIEEE(buf.Bytes())
	result := make([]byte, 4+buf.Len())
	binary.BigEndian.PutUint32(result[:4], crc)
	copy(result[4:], buf.Bytes())
	return result, nil
}

// decodeEntry validates the CRC and decodes the gob payload.
func decodeEntry(data []byte) (Delta, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: entry too short", ErrJournalCorrupted)
	}

	storedCRC := binary.BigEndian.Uint32(data[:4])
	gobData := data[4:]
	if computed := crc32.ChecksumIEEE(gobData); storedCRC != computed {
		return nil, fmt.Errorf("%w: stored=%08x computed=%08x", ErrJournalCorrupted, storedCRC, computed)
	}

	registerDeltaTypes()
	var delta Delta
	dec := gob.NewDecoder(bytes.NewReader(gobData))
	if err := dec.Decode(&delta); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return delta, nil
}

// Append writes a delta with CRC checksum.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - delta: The tree delta to persist. Must not be nil.
//
// Outputs:
//   - error: Non-nil if the write fails or the journal is degraded/closed.
func (j *Journal) Append(ctx context.Context, delta Delta) error {
	if delta == nil {
		return ErrNilDelta
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if j.closed.Load() {
		return ErrJournalClosed
	}

	ctx, span := otel.Tracer("exetree").Start(ctx, "journal.Append",
		trace.WithAttributes(attribute.String("delta_kind", delta.Kind())),
	)
	defer span.End()

	if j.degraded.Load() {
		span.SetStatus(codes.Error, "degraded mode")
		return ErrJournalDegraded
	}

	data, err := encodeEntry(delta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return fmt.Errorf("encode entry: %w", err)
	}

	seqNum := j.seqNum.Add(1)
	key := deltaKey(seqNum)
	err = j.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write entry: %w", err)
	}

	j.totalDeltas.Add(1)
	j.totalBytes.Add(int64(len(data)))

	span.SetAttributes(
		attribute.Int64("seq_num", int64(seqNum)),
		attribute.Int("entry_bytes", len(data)),
	)

	j.logger.Debug("delta appended",
		slog.Uint64("seq_num", seqNum),
		slog.String("kind", delta.Kind()),
		slog.Int("bytes", len(data)))

	return nil
}

// Replay returns all deltas in sequence order with CRC validation.
//
// Degraded journals replay nothing. Sequence gaps and corrupted entries fail
// fast unless SkipCorruptedDeltas is set, in which case they are logged and
// skipped.
func (j *Journal) Replay(ctx context.Context) ([]Delta, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if j.closed.Load() {
		return nil, ErrJournalClosed
	}

	ctx, span := otel.Tracer("exetree").Start(ctx, "journal.Replay")
	defer span.End()

	if j.degraded.Load() {
		span.SetAttributes(attribute.Bool("degraded", true))
		return []Delta{}, nil
	}

	var deltas []Delta
	var lastSeq uint64
	corrupted := 0

	prefix := []byte(deltaKeyPrefix)
	err := j.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			key := item.Key()

			var seqNum uint64
			if _, err := fmt.Sscanf(string(key[len(prefix):]), "%016d", &seqNum); err != nil {
				continue // Skip malformed keys
			}

			if lastSeq > 0 && seqNum != lastSeq+1 {
				if !j.config.SkipCorruptedDeltas {
					return fmt.Errorf("%w: expected %d, got %d", ErrJournalSequenceGap, lastSeq+1, seqNum)
				}
				j.logger.Warn("sequence gap detected",
					slog.Uint64("expected", lastSeq+1),
					slog.Uint64("got", seqNum))
			}
			lastSeq = seqNum

			err := item.Value(func(val []byte) error {
				delta, err := decodeEntry(val)
				if err != nil {
					if errors.Is(err, ErrJournalCorrupted) {
						corrupted++
						j.corruptedCount.Add(1)
						if j.config.SkipCorruptedDeltas {
							j.logger.Warn("skipping corrupted entry",
								slog.Uint64("seq_num", seqNum),
								slog.String("error", err.Error()))
							return nil
						}
					}
					return err
				}
				deltas = append(deltas, delta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replay failed")
		return nil, fmt.Errorf("replay: %w", err)
	}

	span.SetAttributes(
		attribute.Int("delta_count", len(deltas)),
		attribute.Int("corrupted_count", corrupted),
	)

	j.logger.Info("replay completed",
		slog.Int("delta_count", len(deltas)),
		slog.Int("corrupted", corrupted))

	return deltas, nil
}

// IsDegraded reports whether the journal is running without storage.
func (j *Journal) IsDegraded() bool {
	return j.degraded.Load()
}

// Sync flushes pending writes to disk.
func (j *Journal) Sync() error {
	if j.closed.Load() {
		return ErrJournalClosed
	}
	if j.degraded.Load() {
		return nil
	}
	return j.db.Sync()
}

// Close syncs and releases the underlying database.
func (j *Journal) Close() error {
	if j.closed.Swap(true) {
		return nil
	}
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Stats returns journal counters.
func (j *Journal) Stats() JournalStats {
	return JournalStats{
		TotalDeltas:    j.totalDeltas.Load(),
		TotalBytes:     j.totalBytes.Load(),
		LastSeqNum:     j.seqNum.Load(),
		CorruptedCount: j.corruptedCount.Load(),
		Degraded:       j.degraded.Load(),
	}
}

// Rebuild replays a journal into a fresh tree.
//
// The returned tree is identical to the one that produced the journal:
// same node IDs, same child insertion order, same outcomes.
func Rebuild(ctx context.Context, j *Journal) (*Tree, error) {
	deltas, err := j.Replay(ctx)
	if err != nil {
		return nil, err
	}

	tree := New()
	for i, delta := range deltas {
		if err := delta.Apply(tree); err != nil {
			return nil, fmt.Errorf("apply delta %d: %w", i, err)
		}
	}
	return tree, nil
}
