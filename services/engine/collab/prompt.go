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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

// buildSynthesisPrompt renders the request into the prompt shared by the
// LLM-backed synthesizers. The exact wording carries no contract; the JSON
// shape it asks for does.
func buildSynthesisPrompt(req SynthesisRequest) string {
	var b strings.Builder

	b.WriteString("You are a forecasting analyst. Given a scenario, propose the distinct ways it could evolve next.\n\n")
	fmt.Fprintf(&b, "Scenario: %s\n", req.ParentEvent)
	fmt.Fprintf(&b, "Tree depth: %d\n", req.Depth)
	if req.Timeframe != "" {
		fmt.Fprintf(&b, "Timeframe for the next step: %s\n", req.Timeframe)
	}
	if len(req.AncestryPath) > 0 {
		b.WriteString("How we got here:\n")
		for i, step := range req.AncestryPath {
			fmt.Fprintf(&b, "[Depth %d] %s\n", i, step)
		}
	}
	if req.ResearchSummary != "" {
		fmt.Fprintf(&b, "\nResearch summary:\n%s\n", req.ResearchSummary)
	}

	fmt.Fprintf(&b, `
Respond with ONLY a JSON array of %d to %d outcome objects, no prose:
[{"event": "...", "probability": 0.0, "justification": "...", "sentiment": 0}]

Rules:
- "probability" is the conditional probability of the outcome given the scenario above, in [0,1].
- "sentiment" is an integer in [-100,100].
- "justification" must cite the research evidence and be at least a sentence long.
- Outcomes must be mutually exclusive and collectively cover the plausible space.
`, MinCandidates, MaxCandidates)

	return b.String()
}

// parseCandidates extracts the candidate array from raw LLM output,
// tolerating markdown code fences and surrounding prose around the array.
func parseCandidates(raw string) ([]tree.OutcomeCandidate, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Some models wrap the array in commentary; cut to the outermost array.
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.LastIndex(text, "]"); end > start {
			text = text[start : end+1]
		}
	}

	var candidates []tree.OutcomeCandidate
	if err := json.Unmarshal([]byte(text), &candidates); err != nil {
		return nil, fmt.Errorf("%w: unparseable synthesis output: %v", ErrValidation, err)
	}
	return candidates, nil
}
