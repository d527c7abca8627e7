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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// HTTPResearcher calls an external research service that performs web
// search and summarization for a scenario. The service contract mirrors
// ResearchResult; its internals (search provider, summarization model) are
// not this engine's concern.
type HTTPResearcher struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPResearcher reads RESEARCH_SERVICE_URL (default
// http://localhost:12310).
func NewHTTPResearcher() *HTTPResearcher {
	baseURL := os.Getenv("RESEARCH_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:12310"
	}
	return &HTTPResearcher{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    baseURL,
	}
}

type researchRequest struct {
	Event   string `json:"event"`
	Context string `json:"context,omitempty"`
	Depth   int    `json:"depth"`
}

// Research implements the Researcher interface.
func (r *HTTPResearcher) Research(ctx context.Context, event, contextText string, depth int) (*ResearchResult, error) {
	payload, err := json.Marshal(researchRequest{Event: event, Context: contextText, Depth: depth})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal research request: %v", ErrCollaborator, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/v1/research", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build research request: %v", ErrCollaborator, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: research call: %v", ErrCollaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: research service returned %d: %s",
			ErrCollaborator, resp.StatusCode, string(body))
	}

	var result ResearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode research response: %v", ErrCollaborator, err)
	}
	slog.Debug("Research complete", "event", event, "sources", len(result.Sources))
	return &result, nil
}
