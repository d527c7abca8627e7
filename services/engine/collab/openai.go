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
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

// OpenAISynthesizer proposes successor scenarios via the OpenAI chat API.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISynthesizer builds a synthesizer from OPENAI_API_KEY and
// OPENAI_MODEL, falling back to the container secret mount for the key.
func NewOpenAISynthesizer() (*OpenAISynthesizer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI synthesizer", "model", model)
	return &OpenAISynthesizer{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Synthesize implements the Synthesizer interface.
func (o *OpenAISynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]tree.OutcomeCandidate, error) {
	slog.Debug("Synthesizing outcomes via OpenAI", "model", o.model, "depth", req.Depth)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a rigorous probabilistic forecaster. Respond only with JSON."},
			{Role: openai.ChatMessageRoleUser, Content: buildSynthesisPrompt(req)},
		},
		Temperature: 0.4,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeText,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai synthesis: %v", ErrCollaborator, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", ErrCollaborator)
	}

	candidates, err := parseCandidates(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	slog.Debug("OpenAI synthesis complete", "candidates", len(candidates))
	return candidates, nil
}
