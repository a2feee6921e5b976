// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset turns a finished execution tree into fixed-width training
// examples for the bias model.
//
// The exporter performs no synchronization of its own: run it against a tree
// that is not concurrently mutated, or have the caller hold the service's
// tree boundary for the duration of the walk.
package dataset

import (
	"github.com/KodiakAI/KodiakFuzz/services/valgen/exetree"
)

// WindowWidth is the fixed feature width of every training example.
const WindowWidth = 10

// Example is one training pair: the trailing window of a path and the
// reached node's own outcome flag.
type Example struct {
	// Features holds the last WindowWidth generated values of the path,
	// left-aligned. Paths shorter than the window are zero-padded on the
	// right; longer paths keep only the most recent values.
	Features [WindowWidth]float64 `json:"features"`

	// Label is 1 if the node's outcome flag was set at export time, else 0.
	Label int `json:"label"`
}

// Walk traverses the tree in pre-order, children in first-insertion order,
// and calls fn with one example per non-root node, parents before their
// descendants. The traversal is deterministic: re-walking an unmodified tree
// yields the identical sequence.
//
// The walk stops at the first error from fn and returns it.
func Walk(root *exetree.Node, fn func(Example) error) error {
	path := make([]float64, 0, 64)
	return walk(root, path, fn)
}

func walk(n *exetree.Node, path []float64, fn func(Example) error) error {
	for _, key := range n.EdgeKeys() {
		child, ok := n.Child(key)
		if !ok {
			// A NaN key fails its own map lookup; that subtree is
			// unreachable and exports nothing.
			continue
		}
		childPath := append(path, key)

		if err := fn(makeExample(childPath, child.MayWin())); err != nil {
			return err
		}
		if err := walk(child, childPath, fn); err != nil {
			return err
		}
	}
	return nil
}

// makeExample applies the windowing rule to a root-to-node path.
func makeExample(path []float64, mayWin bool) Example {
	var ex Example
	if mayWin {
		ex.Label = 1
	}

	// Keep the most recent values; drop the oldest, never the newest.
	window := path
	if len(window) > WindowWidth {
		window = window[len(window)-WindowWidth:]
	}
	copy(ex.Features[:], window)
	return ex
}

// Collect walks the tree and returns all examples in export order. A tree
// with k non-root nodes yields exactly k examples.
func Collect(root *exetree.Node) []Example {
	var out []Example
	_ = Walk(root, func(ex Example) error {
		out = append(out, ex)
		return nil
	})
	return out
}
