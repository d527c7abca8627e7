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
	"context"
	"sync"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

// Deterministic stand-ins for the research and synthesis collaborators.
// Exported (rather than _test.go local) because the generator and handler
// tests in other packages inject them, and because callers running offline
// smoke sessions use them too.

// ScriptedResearcher returns a fixed result, or a per-call function when
// ResearchFunc is set.
type ScriptedResearcher struct {
	Result       *ResearchResult
	Err          error
	ResearchFunc func(ctx context.Context, event, contextText string, depth int) (*ResearchResult, error)

	mu    sync.Mutex
	calls int
}

// Research implements the Researcher interface.
func (s *ScriptedResearcher) Research(ctx context.Context, event, contextText string, depth int) (*ResearchResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.ResearchFunc != nil {
		return s.ResearchFunc(ctx, event, contextText, depth)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &ResearchResult{
		Summary:    "no notable developments found",
		Confidence: 0.5,
	}, nil
}

// Calls returns how many times Research was invoked.
func (s *ScriptedResearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ScriptedSynthesizer returns a fixed candidate set, or a per-call function
// when SynthesizeFunc is set.
type ScriptedSynthesizer struct {
	Candidates     []tree.OutcomeCandidate
	Err            error
	SynthesizeFunc func(ctx context.Context, req SynthesisRequest) ([]tree.OutcomeCandidate, error)

	mu    sync.Mutex
	calls int
}

// Synthesize implements the Synthesizer interface.
func (s *ScriptedSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]tree.OutcomeCandidate, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.SynthesizeFunc != nil {
		return s.SynthesizeFunc(ctx, req)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	// Copy so callers can't cross-contaminate sibling groups.
	out := make([]tree.OutcomeCandidate, len(s.Candidates))
	copy(out, s.Candidates)
	return out, nil
}

// Calls returns how many times Synthesize was invoked.
func (s *ScriptedSynthesizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
