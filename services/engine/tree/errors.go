// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import "errors"

var (
	// ErrDuplicateID indicates an attempt to register a node whose
	// identifier already exists. This is a bookkeeping defect in the
	// caller, not an external failure, and should abort the session.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrNodeNotFound indicates a lookup for an identifier the store has
	// never seen. Like ErrDuplicateID, it signals store misuse.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvariant indicates a probability invariant could not be
	// satisfied: sibling probabilities that fail to normalize, non-finite
	// values, or a child set whose sum is outside tolerance at attach.
	ErrInvariant = errors.New("probability invariant violated")

	// ErrParentTerminal indicates an attach attempt against a parent whose
	// status is already completed or failed.
	ErrParentTerminal = errors.New("parent node already terminal")

	// ErrStatusTransition indicates an illegal (non-forward) node status
	// transition.
	ErrStatusTransition = errors.New("illegal status transition")
)
