// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	examples := []Example{
		{Features: [WindowWidth]float64{1, 2, 3}, Label: 1},
		{Features: [WindowWidth]float64{-0.5}, Label: 0},
	}

	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, examples))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "f0,f1,f2,f3,f4,f5,f6,f7,f8,f9,label", lines[0])
	assert.Equal(t, "1,2,3,0,0,0,0,0,0,0,1", lines[1])
	assert.Equal(t, "-0.5,0,0,0,0,0,0,0,0,0,0", lines[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, nil))

	// Header only.
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "f0,f1,f2,f3,f4,f5,f6,f7,f8,f9,label", lines[0])
}

func TestWriteJSONL(t *testing.T) {
	examples := []Example{
		{Features: [WindowWidth]float64{7}, Label: 1},
		{Features: [WindowWidth]float64{1, 2}, Label: 0},
	}

	var sb strings.Builder
	require.NoError(t, WriteJSONL(&sb, examples))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 2)

	var first Example
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, examples[0], first)

	var second Example
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, examples[1], second)
}

func TestWriteJSONL_Empty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteJSONL(&sb, nil))
	assert.Empty(t, sb.String())
}
