// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.InMemory())
	assert.Empty(t, db.Path())
	assert.NoError(t, db.Sync()) // no-op in memory
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0 // keep the test hermetic

	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, dir, db.Path())
	assert.False(t, db.InMemory())
}

func TestDB_WithTxnRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	err = db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	var got []byte
	err = db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		got, err = item.ValueCopy(nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestDB_WithTxnCancelledContext(t *testing.T) {
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.WithTxn(ctx, func(txn *dgbadger.Txn) error { return nil })
	assert.Error(t, err)

	err = db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error { return nil })
	assert.Error(t, err)
}
