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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tree := New()

	require.NotNil(t, tree.Root())
	assert.Equal(t, uint64(0), tree.Root().ID())
	assert.Equal(t, 0, tree.Root().Depth())
	assert.Equal(t, 1, tree.Size())
	assert.False(t, tree.Root().MayWin())
	assert.Empty(t, tree.Root().Path())
}

func TestFindOrAddEdge_CreatesChild(t *testing.T) {
	tree := New()

	child, created := tree.FindOrAddEdge(tree.Root(), 123.0)
	require.True(t, created)
	require.NotNil(t, child)
	assert.Equal(t, uint64(1), child.ID())
	assert.Equal(t, 1, child.Depth())
	assert.Equal(t, []float64{123.0}, child.Path())
	assert.Equal(t, 2, tree.Size())
}

func TestFindOrAddEdge_Idempotent(t *testing.T) {
	tree := New()

	first, created := tree.FindOrAddEdge(tree.Root(), 5.0)
	require.True(t, created)

	second, created := tree.FindOrAddEdge(tree.Root(), 5.0)
	assert.False(t, created)
	assert.Same(t, first, second)

	// No duplicate in the child order.
	assert.Equal(t, []float64{5.0}, tree.Root().EdgeKeys())
	assert.Equal(t, 2, tree.Size())
}

func TestFindOrAddEdge_PreservesInsertionOrder(t *testing.T) {
	tree := New()

	tree.FindOrAddEdge(tree.Root(), 3.0)
	tree.FindOrAddEdge(tree.Root(), 1.0)
	tree.FindOrAddEdge(tree.Root(), 2.0)

	// Re-traversing existing edges must not disturb the order.
	tree.FindOrAddEdge(tree.Root(), 1.0)
	tree.FindOrAddEdge(tree.Root(), 3.0)

	assert.Equal(t, []float64{3.0, 1.0, 2.0}, tree.Root().EdgeKeys())
}

func TestNode_Child(t *testing.T) {
	tree := New()
	child, _ := tree.FindOrAddEdge(tree.Root(), 7.0)

	got, ok := tree.Root().Child(7.0)
	require.True(t, ok)
	assert.Same(t, child, got)

	_, ok = tree.Root().Child(8.0)
	assert.False(t, ok)
}

func TestNode_SetMayWin_LastWriteWins(t *testing.T) {
	tree := New()
	node, _ := tree.FindOrAddEdge(tree.Root(), 1.0)

	node.SetMayWin(true)
	assert.True(t, node.MayWin())

	node.SetMayWin(false)
	assert.False(t, node.MayWin())
}

func TestNode_Path_DeepChain(t *testing.T) {
	tree := New()
	cur := tree.Root()
	for i := 1; i <= 4; i++ {
		cur, _ = tree.FindOrAddEdge(cur, float64(i))
	}

	assert.Equal(t, 4, cur.Depth())
	assert.Equal(t, []float64{1, 2, 3, 4}, cur.Path())
}

func TestNodeByID(t *testing.T) {
	tree := New()
	a, _ := tree.FindOrAddEdge(tree.Root(), 1.0)
	b, _ := tree.FindOrAddEdge(a, 2.0)

	got, ok := tree.NodeByID(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = tree.NodeByID(99)
	assert.False(t, ok)
}
