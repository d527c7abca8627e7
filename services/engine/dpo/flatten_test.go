// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dpo

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

const question = "Will the merger close this quarter?"

func candidate(event string, p float64) tree.OutcomeCandidate {
	return tree.OutcomeCandidate{
		Event:         event,
		Probability:   p,
		Justification: "filings and analyst coverage both support this branch",
		Sentiment:     0,
	}
}

// buildTree makes root -> {approved 0.6, blocked 0.4}; approved -> {fast
// close 0.5, delayed close 0.5}. Leaves: blocked, fast close, delayed close.
func buildTree(t *testing.T) (*tree.Store, *tree.Resolver, map[string]string) {
	t.Helper()
	root := tree.NewRoot(question)
	store := tree.NewStore(root)

	approved := tree.NewChild(root, candidate("regulator approves the deal", 0.6), nil)
	blocked := tree.NewChild(root, candidate("regulator blocks the deal", 0.4), nil)
	if err := store.AttachChildren(root.ID, []*tree.ScenarioNode{approved, blocked}); err != nil {
		t.Fatalf("attach level 1: %v", err)
	}

	fast := tree.NewChild(approved, candidate("deal closes within the quarter", 0.5), nil)
	slow := tree.NewChild(approved, candidate("closing slips to next quarter", 0.5), nil)
	if err := store.AttachChildren(approved.ID, []*tree.ScenarioNode{fast, slow}); err != nil {
		t.Fatalf("attach level 2: %v", err)
	}

	ids := map[string]string{
		"approved": approved.ID,
		"blocked":  blocked.ID,
		"fast":     fast.ID,
		"slow":     slow.ID,
	}
	return store, tree.NewResolver(store), ids
}

func TestFlattenNode(t *testing.T) {
	_, resolver, ids := buildTree(t)

	record, err := FlattenNode(resolver, question, ids["fast"])
	if err != nil {
		t.Fatalf("FlattenNode: %v", err)
	}
	if record.Question != question {
		t.Errorf("question = %q", record.Question)
	}
	wantLines := []string{
		"[Depth 1] regulator approves the deal (p=0.60)",
		"[Depth 2] deal closes within the quarter (p=0.50)",
	}
	if len(record.PathLines) != len(wantLines) {
		t.Fatalf("path lines = %v", record.PathLines)
	}
	for i, want := range wantLines {
		if record.PathLines[i] != want {
			t.Errorf("line %d = %q, want %q", i, record.PathLines[i], want)
		}
	}
	if math.Abs(record.CumulativeProbability-0.3) > 1e-9 {
		t.Errorf("cumulative probability = %f, want 0.3", record.CumulativeProbability)
	}
	if len(record.Alternatives) != 1 || !strings.Contains(record.Alternatives[0], "closing slips") {
		t.Errorf("alternatives = %v", record.Alternatives)
	}
}

func TestContextRecordPrompt(t *testing.T) {
	_, resolver, ids := buildTree(t)
	record, err := FlattenNode(resolver, question, ids["fast"])
	if err != nil {
		t.Fatalf("FlattenNode: %v", err)
	}

	prompt := record.Prompt()
	for _, want := range []string{
		"Question: " + question,
		"[Depth 1] regulator approves the deal (p=0.60)",
		"Cumulative Probability: 0.3000",
		"Answer YES or NO",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestFlattenLeaves_OrderedByMass(t *testing.T) {
	store, _, _ := buildTree(t)

	records, err := FlattenLeaves(store, question)
	if err != nil {
		t.Fatalf("FlattenLeaves: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	// blocked (0.4) first, then the two 0.3 paths.
	if math.Abs(records[0].CumulativeProbability-0.4) > 1e-9 {
		t.Errorf("first record mass = %f, want 0.4", records[0].CumulativeProbability)
	}
	for i := 1; i < len(records); i++ {
		if records[i].CumulativeProbability > records[i-1].CumulativeProbability {
			t.Errorf("records not ordered by descending mass at %d", i)
		}
	}

	sum := 0.0
	for _, record := range records {
		sum += record.CumulativeProbability
	}
	if math.Abs(sum-1.0) > tree.LeafSumTolerance {
		t.Errorf("leaf mass sum = %f", sum)
	}
}

func TestNewPair(t *testing.T) {
	_, resolver, ids := buildTree(t)
	record, err := FlattenNode(resolver, question, ids["blocked"])
	if err != nil {
		t.Fatalf("FlattenNode: %v", err)
	}

	pair, err := NewPair(record, "YES", "NO")
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	if pair.Chosen != "NO" || pair.Rejected != "YES" {
		t.Errorf("pair = chosen %q rejected %q", pair.Chosen, pair.Rejected)
	}
	if pair.Metadata.NodeID != ids["blocked"] {
		t.Errorf("metadata node id = %s", pair.Metadata.NodeID)
	}
	if math.Abs(pair.Metadata.CumulativeProbability-0.4) > 1e-9 {
		t.Errorf("metadata mass = %f", pair.Metadata.CumulativeProbability)
	}

	if _, err := NewPair(record, "NO", "NO"); !errors.Is(err, ErrExport) {
		t.Errorf("agreeing pair err = %v, want ErrExport", err)
	}
}

func TestWriteJSONL(t *testing.T) {
	store, _, _ := buildTree(t)
	records, err := FlattenLeaves(store, question)
	if err != nil {
		t.Fatalf("FlattenLeaves: %v", err)
	}

	var pairs []*DPORecord
	for _, record := range records {
		pair, err := NewPair(record, "YES", "NO")
		if err != nil {
			t.Fatalf("NewPair: %v", err)
		}
		pairs = append(pairs, pair)
	}

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, pairs); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}
	out := buf.String()

	// The metadata key the downstream training tooling reads.
	if !strings.Contains(out, `"cumulativeProbability"`) {
		t.Error("metadata key cumulativeProbability missing from output")
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	lines := 0
	for scanner.Scan() {
		var decoded DPORecord
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		if decoded.Prompt == "" || decoded.Chosen == "" {
			t.Errorf("line %d incomplete: %+v", lines, decoded)
		}
		lines++
	}
	if lines != 3 {
		t.Errorf("lines = %d, want 3", lines)
	}
}
