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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

func validCandidate(p float64) tree.OutcomeCandidate {
	return tree.OutcomeCandidate{
		Event:         "the measure passes in a close vote",
		Probability:   p,
		Justification: "recent committee votes and polling both point this way",
		Sentiment:     20,
	}
}

func TestValidateCandidates_Accepts(t *testing.T) {
	err := ValidateCandidates([]tree.OutcomeCandidate{
		validCandidate(0.5), validCandidate(0.3), validCandidate(0.3),
	})
	if err != nil {
		t.Errorf("valid set rejected: %v", err)
	}
}

func TestValidateCandidates_Rejects(t *testing.T) {
	outOfRange := validCandidate(1.7)
	shortJustification := validCandidate(0.5)
	shortJustification.Justification = "because"
	badSentiment := validCandidate(0.5)
	badSentiment.Sentiment = 250

	cases := []struct {
		name       string
		candidates []tree.OutcomeCandidate
	}{
		{"empty set", nil},
		{"too many", []tree.OutcomeCandidate{
			validCandidate(0.2), validCandidate(0.2), validCandidate(0.2),
			validCandidate(0.2), validCandidate(0.1), validCandidate(0.1),
		}},
		{"probability out of range", []tree.OutcomeCandidate{outOfRange}},
		{"justification too short", []tree.OutcomeCandidate{shortJustification}},
		{"sentiment out of range", []tree.OutcomeCandidate{badSentiment}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCandidates(tc.candidates)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestParseCandidates(t *testing.T) {
	raw := "```json\n[{\"event\": \"rates hold\", \"probability\": 0.6, \"justification\": \"futures pricing strongly implies a hold\", \"sentiment\": 5}]\n```"
	candidates, err := parseCandidates(raw)
	if err != nil {
		t.Fatalf("parseCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Probability != 0.6 {
		t.Errorf("candidates = %+v", candidates)
	}
}

func TestParseCandidates_SurroundingProse(t *testing.T) {
	raw := "Here are the outcomes:\n[{\"event\": \"x\", \"probability\": 0.4, \"justification\": \"y\", \"sentiment\": 0}]\nHope that helps!"
	candidates, err := parseCandidates(raw)
	if err != nil {
		t.Fatalf("parseCandidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(candidates))
	}
}

func TestParseCandidates_Garbage(t *testing.T) {
	_, err := parseCandidates("I cannot answer that.")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestBuildSynthesisPrompt_IncludesAncestry(t *testing.T) {
	prompt := buildSynthesisPrompt(SynthesisRequest{
		ParentEvent:     "grid operator declares stage 2 emergency",
		Depth:           2,
		ResearchSummary: "reserves are thin",
		Timeframe:       "next 48 hours",
		AncestryPath:    []string{"heatwave hits the region", "demand sets a record"},
	})
	for _, want := range []string{
		"[Depth 0] heatwave hits the region",
		"[Depth 1] demand sets a record",
		"next 48 hours",
		"reserves are thin",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestHTTPResearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/research" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary": "three outlets report progress", "sources": [{"url": "https://example.com", "title": "Report"}], "confidence": 0.8}`))
	}))
	defer srv.Close()

	r := &HTTPResearcher{httpClient: srv.Client(), baseURL: srv.URL}
	result, err := r.Research(context.Background(), "talks resume", "", 1)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if result.Summary == "" || len(result.Sources) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestHTTPResearcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := &HTTPResearcher{httpClient: srv.Client(), baseURL: srv.URL}
	_, err := r.Research(context.Background(), "talks resume", "", 1)
	if !errors.Is(err, ErrCollaborator) {
		t.Errorf("err = %v, want ErrCollaborator", err)
	}
}
