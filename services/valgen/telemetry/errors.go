// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import "errors"

var (
	// ErrNilContext indicates Init was called with a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter indicates a configured exporter name is not supported.
	ErrUnknownExporter = errors.New("unknown exporter")
)
