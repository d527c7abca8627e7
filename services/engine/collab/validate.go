// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collab

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

// MinCandidates and MaxCandidates bound how many successor scenarios one
// synthesis call may propose.
const (
	MinCandidates = 1
	MaxCandidates = 5
)

var validate = validator.New()

// candidateBatch exists so the whole set can be validated in one call,
// including the count bounds.
type candidateBatch struct {
	Candidates []tree.OutcomeCandidate `validate:"required,min=1,max=5,dive"`
}

// ValidateCandidates checks a raw synthesis result against the admission
// schema: 1-5 candidates, each with a non-trivial event text, probability
// in [0,1], a justification of at least the minimum length, and sentiment
// in [-100,100].
//
// The LLM output is duck-typed by nature; anything that does not match the
// schema is rejected (and retried by the orchestrator), never coerced.
//
// Outputs:
//
//	error - wraps ErrValidation with the field-level detail.
func ValidateCandidates(candidates []tree.OutcomeCandidate) error {
	if err := validate.Struct(candidateBatch{Candidates: candidates}); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
