// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package exetree maintains the execution tree: the append-only decision tree
// that records every sequence of generated values as a path from the root,
// one edge per generation call, with a per-node outcome flag set when a
// fuzzing run exits.
//
// The tree provides no locking of its own. The valgen service serializes all
// mutation behind a single mutex; readers that need a consistent view (the
// dataset exporter) must hold that same boundary or work on a quiesced tree.
package exetree

// Node is a point reached in the target program's execution after zero or
// more generation decisions.
//
// Children are keyed by the generated value normalized to a float64 and kept
// in first-insertion order. That order is semantically significant: it fixes
// the dataset export order and never changes once an edge exists.
type Node struct {
	id       uint64
	parent   *Node
	edgeKey  float64
	children map[float64]*Node
	order    []float64
	mayWin   bool
}

// ID returns the node's tree-assigned identifier. The root is always 0.
func (n *Node) ID() uint64 { return n.id }

// Depth returns the number of edges between the root and this node.
func (n *Node) Depth() int {
	d := 0
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// MayWin returns the node's outcome flag.
func (n *Node) MayWin() bool { return n.mayWin }

// SetMayWin overwrites the node's outcome flag. Last write wins; revisiting
// sessions neither average nor merge.
func (n *Node) SetMayWin(v bool) { n.mayWin = v }

// EdgeKeys returns the node's child keys in first-insertion order. The
// returned slice is shared with the node; callers must not modify it.
func (n *Node) EdgeKeys() []float64 { return n.order }

// Child returns the child reached by key, if the edge exists.
func (n *Node) Child(key float64) (*Node, bool) {
	c, ok := n.children[key]
	return c, ok
}

// Path returns the edge keys from the root to this node, oldest first.
// The root's path is empty.
func (n *Node) Path() []float64 {
	depth := n.Depth()
	path := make([]float64, depth)
	for cur := n; cur.parent != nil; cur = cur.parent {
		depth--
		path[depth] = cur.edgeKey
	}
	return path
}

// Tree owns the root node and assigns sequential IDs at node creation.
// IDs exist for journaling and diagnostics; tree semantics never depend
// on them.
type Tree struct {
	root   *Node
	byID   map[uint64]*Node
	nextID uint64
}

// New creates a tree holding only the root node (ID 0).
func New() *Tree {
	root := &Node{id: 0, children: make(map[float64]*Node)}
	return &Tree{
		root:   root,
		byID:   map[uint64]*Node{0: root},
		nextID: 1,
	}
}

// Root returns the tree's root node.
func (t *Tree) Root() *Node { return t.root }

// Size returns the total node count, root included.
func (t *Tree) Size() int { return len(t.byID) }

// NodeByID looks up a node by its identifier.
func (t *Tree) NodeByID(id uint64) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// FindOrAddEdge returns the child of parent reached by key, creating it if
// the edge does not exist yet. The comma-ok result reports whether a node
// was created.
//
// Idempotent: repeated calls with the same (parent, key) pair return the same
// child and never disturb the parent's child order. Nodes are never deleted;
// the tree only grows.
func (t *Tree) FindOrAddEdge(parent *Node, key float64) (*Node, bool) {
	if c, ok := parent.children[key]; ok {
		return c, false
	}
	child := &Node{
		id:       t.nextID,
		parent:   parent,
		edgeKey:  key,
		children: make(map[float64]*Node),
	}
	t.nextID++
	parent.children[key] = child
	parent.order = append(parent.order, key)
	t.byID[child.id] = child
	return child, true
}

// addEdgeWithID recreates an edge during journal replay, preserving the
// original child ID. Returns false if the ID is already taken by another
// node or the edge already exists under a different child.
func (t *Tree) addEdgeWithID(parent *Node, key float64, childID uint64) bool {
	if _, taken := t.byID[childID]; taken {
		return false
	}
	if _, exists := parent.children[key]; exists {
		return false
	}
	child := &Node{
		id:       childID,
		parent:   parent,
		edgeKey:  key,
		children: make(map[float64]*Node),
	}
	parent.children[key] = child
	parent.order = append(parent.order, key)
	t.byID[childID] = child
	if childID >= t.nextID {
		t.nextID = childID + 1
	}
	return true
}
