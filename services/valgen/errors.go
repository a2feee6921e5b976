// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package valgen

import "errors"

// Sentinel errors for the valgen service.
var (
	// ErrInvalidBounds indicates lo > hi under the request type's ordering.
	ErrInvalidBounds = errors.New("lower bound exceeds upper bound")

	// ErrUnsupportedTag indicates a type tag outside the supported set.
	ErrUnsupportedTag = errors.New("unsupported type tag")

	// ErrTagMismatch indicates bounds carrying different type tags.
	ErrTagMismatch = errors.New("bounds have mismatched type tags")
)
