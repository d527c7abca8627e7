// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generator

import "errors"

var (
	// ErrConfig indicates an invalid generation configuration.
	ErrConfig = errors.New("invalid generation config")

	// ErrSessionState indicates an operation against a session that has
	// already reached a final state.
	ErrSessionState = errors.New("session not running")

	// ErrExpansion wraps a node expansion that exhausted its retry. The
	// orchestrator logs it and marks the node failed; it never aborts the
	// session.
	ErrExpansion = errors.New("node expansion failed")
)
