// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger provides factory functions and configuration for the
// embedded BadgerDB instances used by the valgen service.
//
// The execution tree journal is the only production consumer: it needs
// synchronous writes (it is a WAL) and low-latency appends on the hot
// generation path.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode with no disk persistence.
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes. Must be true for WAL use.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output.
	// If nil, BadgerDB logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable ratio before GC rewrites
	// a value log file.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: synchronous writes and a
// 5-minute GC cycle.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: in-memory, async, no GC.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB wraps a BadgerDB instance with lifecycle management.
type DB struct {
	*badger.DB
	gcRunner *gcRunner
	path     string
	inMemory bool
}

// Open opens a BadgerDB with the given configuration and starts the GC
// runner when GCInterval is set.
//
// Outputs:
//
//	*DB - The managed database. Caller must Close() when done.
//	error - Non-nil if the path is invalid or the database cannot be opened.
//
// Thread Safety: the returned *DB is safe for concurrent use.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	wrapped := &DB{
		DB:       db,
		path:     cfg.Path,
		inMemory: cfg.InMemory,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		wrapped.gcRunner = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		wrapped.gcRunner.start()
	}

	return wrapped, nil
}

// Close stops the GC runner and closes the database.
func (d *DB) Close() error {
	if d.gcRunner != nil {
		d.gcRunner.stop()
	}
	return d.DB.Close()
}

// Path returns the database directory, or empty string for in-memory databases.
func (d *DB) Path() string { return d.path }

// InMemory reports whether this is an in-memory database.
func (d *DB) InMemory() bool { return d.inMemory }

// Sync flushes pending writes to disk. No-op for in-memory databases.
func (d *DB) Sync() error {
	if d.inMemory {
		return nil
	}
	return d.DB.Sync()
}

// WithTxn executes fn within a read-write transaction, committing if fn
// returns nil and discarding otherwise.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn executes fn within a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// gcRunner periodically triggers value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *slog.Logger
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing to collect, not a failure.
			err := r.db.RunValueLogGC(r.ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && r.logger != nil {
				r.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}
