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
	"fmt"
	"log/slog"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

// OllamaSynthesizer proposes successor scenarios via a local Ollama model.
// Used for fully local deployments where no API key leaves the machine.
type OllamaSynthesizer struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaSynthesizer builds a synthesizer against OLLAMA_HOST (default
// http://localhost:11434) and OLLAMA_MODEL (default llama3.1).
func NewOllamaSynthesizer() (*OllamaSynthesizer, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "llama3.1"
		slog.Warn("OLLAMA_MODEL not set, defaulting to llama3.1")
	}

	llm, err := ollama.New(ollama.WithServerURL(host), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("%w: ollama init: %v", ErrCollaborator, err)
	}
	slog.Info("Initializing Ollama synthesizer", "host", host, "model", model)
	return &OllamaSynthesizer{llm: llm, model: model}, nil
}

// Synthesize implements the Synthesizer interface.
func (o *OllamaSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]tree.OutcomeCandidate, error) {
	slog.Debug("Synthesizing outcomes via Ollama", "model", o.model, "depth", req.Depth)

	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, buildSynthesisPrompt(req),
		llms.WithTemperature(0.4),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama synthesis: %v", ErrCollaborator, err)
	}
	return parseCandidates(out)
}
