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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes examples as CSV with a f0..f9,label header row. This is
// the documented contract with training-data consumers that want columnar
// input.
func WriteCSV(w io.Writer, examples []Example) error {
	cw := csv.NewWriter(w)

	header := make([]string, WindowWidth+1)
	for i := 0; i < WindowWidth; i++ {
		header[i] = fmt.Sprintf("f%d", i)
	}
	header[WindowWidth] = "label"
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, WindowWidth+1)
	for _, ex := range examples {
		for i, f := range ex.Features {
			row[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		row[WindowWidth] = strconv.Itoa(ex.Label)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes examples as JSON Lines, one object per example.
func WriteJSONL(w io.Writer, examples []Example) error {
	enc := json.NewEncoder(w)
	for i, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return fmt.Errorf("encode example %d: %w", i, err)
		}
	}
	return nil
}
