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
	"log/slog"
)

// NewSynthesizer selects a synthesis backend by name.
//
// Inputs:
//
//	backend - "openai" or "ollama"; empty defaults to openai.
func NewSynthesizer(backend string) (Synthesizer, error) {
	switch backend {
	case "", "openai":
		slog.Info("Using OpenAI synthesis backend")
		return NewOpenAISynthesizer()
	case "ollama":
		slog.Info("Using Ollama synthesis backend")
		return NewOllamaSynthesizer()
	default:
		return nil, fmt.Errorf("%w: unknown synthesis backend %q", ErrCollaborator, backend)
	}
}
