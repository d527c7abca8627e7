// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collab defines the engine's external collaborators: the research
// step that gathers source material for a scenario and the
// probability-synthesis step that turns research into candidate successor
// scenarios.
//
// Both are injected into a generation session at construction time, so
// tests substitute deterministic doubles instead of flipping a process-wide
// mock flag.
package collab

import (
	"context"
	"errors"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

var (
	// ErrCollaborator wraps research or synthesis calls that failed or
	// timed out. The orchestrator treats it as a per-node failure.
	ErrCollaborator = errors.New("collaborator call failed")

	// ErrValidation wraps malformed or out-of-range candidates from
	// synthesis. Out-of-range probabilities are a validation failure, not
	// something to clamp silently.
	ErrValidation = errors.New("candidate validation failed")
)

// ResearchResult is the source material gathered for one scenario.
type ResearchResult struct {
	Summary    string          `json:"summary"`
	Sources    []tree.Citation `json:"sources,omitempty"`
	Queries    []string        `json:"queries,omitempty"`
	Confidence float64         `json:"confidence"`
}

// Researcher gathers external evidence about a scenario before synthesis.
type Researcher interface {
	Research(ctx context.Context, event, contextText string, depth int) (*ResearchResult, error)
}

// SynthesisRequest carries everything the synthesis collaborator needs to
// propose successor scenarios for one node.
type SynthesisRequest struct {
	ParentEvent     string   `json:"parent_event"`
	Depth           int      `json:"depth"`
	ResearchSummary string   `json:"research_summary"`
	Timeframe       string   `json:"timeframe,omitempty"`
	AncestryPath    []string `json:"ancestry_path,omitempty"`
}

// Synthesizer turns research into 1-5 candidate successor scenarios.
// Probabilities need not sum to 1.0; the tree normalizer handles that.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]tree.OutcomeCandidate, error)
}
