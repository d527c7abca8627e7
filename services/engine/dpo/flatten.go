// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dpo flattens a finished scenario tree into preference-training
// records: one prompt per root-to-leaf path, paired with a chosen and a
// rejected completion once the real-world outcome is known.
//
// Everything here is pure value data built from resolver views. Records
// carry no references back into the tree and serialize independently.
package dpo

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

// ErrExport wraps flattening and serialization failures.
var ErrExport = errors.New("training data export failed")

// ContextRecord is the flattened view of one leaf: the question, the
// ancestry rendered as depth-tagged lines, the alternatives that were on the
// table at the leaf's final branch, and the path's cumulative probability.
type ContextRecord struct {
	NodeID                string   `json:"node_id"`
	Question              string   `json:"question"`
	PathLines             []string `json:"path_lines"`
	Alternatives          []string `json:"alternatives,omitempty"`
	Justification         string   `json:"justification,omitempty"`
	Depth                 int      `json:"depth"`
	CumulativeProbability float64  `json:"cumulative_probability"`
	Sentiment             int      `json:"sentiment"`
}

// FlattenNode builds the context record for one node from resolver views.
//
// The root itself is the question, so path lines start at depth 1 in the
// form "[Depth n] event (p=0.xx)".
func FlattenNode(r *tree.Resolver, question, nodeID string) (*ContextRecord, error) {
	path, err := r.PathFromRoot(nodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}
	siblings, err := r.Siblings(nodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}

	lines := make([]string, 0, len(path)-1)
	for _, step := range path[1:] {
		lines = append(lines, fmt.Sprintf("[Depth %d] %s (p=%.2f)", step.Depth, step.Event, step.Probability))
	}
	alternatives := make([]string, 0, len(siblings))
	for _, sib := range siblings {
		alternatives = append(alternatives, fmt.Sprintf("%s (p=%.2f)", sib.Event, sib.Probability))
	}

	leaf := path[len(path)-1]
	return &ContextRecord{
		NodeID:                nodeID,
		Question:              question,
		PathLines:             lines,
		Alternatives:          alternatives,
		Justification:         leaf.Justification,
		Depth:                 leaf.Depth,
		CumulativeProbability: tree.CumulativeProbability(path),
		Sentiment:             leaf.Sentiment,
	}, nil
}

// Prompt renders the record into the training prompt text.
func (c *ContextRecord) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", c.Question)
	b.WriteString("Scenario Path:\n")
	for _, line := range c.PathLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Cumulative Probability: %.4f\n", c.CumulativeProbability)
	if len(c.Alternatives) > 0 {
		b.WriteString("\nAlternatives at the final branch:\n")
		for _, alt := range c.Alternatives {
			b.WriteString(alt)
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nGiven this scenario path, will the event in the question occur? Answer YES or NO.")
	return b.String()
}

// FlattenLeaves builds context records for every leaf of the tree, ordered
// by descending cumulative probability so the most likely paths export
// first. Failed interior nodes contribute their own leaf record: their
// unexpanded mass is still a path the model took.
func FlattenLeaves(store *tree.Store, question string) ([]*ContextRecord, error) {
	snap := store.Snapshot()
	resolver := tree.NewResolver(store)

	var records []*ContextRecord
	for id, node := range snap.Nodes {
		if !node.IsLeaf() {
			continue
		}
		record, err := FlattenNode(resolver, question, id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CumulativeProbability != records[j].CumulativeProbability {
			return records[i].CumulativeProbability > records[j].CumulativeProbability
		}
		return records[i].NodeID < records[j].NodeID
	})
	return records, nil
}

// PairMetadata travels with each training record for later analysis.
type PairMetadata struct {
	NodeID                string  `json:"nodeId"`
	Depth                 int     `json:"depth"`
	CumulativeProbability float64 `json:"cumulativeProbability"`
	Predicted             string  `json:"predicted"`
	Actual                string  `json:"actual"`
}

// DPORecord is one preference pair: the prompt, the completion to prefer,
// and the completion to penalize.
type DPORecord struct {
	Prompt   string       `json:"prompt"`
	Chosen   string       `json:"chosen"`
	Rejected string       `json:"rejected"`
	Metadata PairMetadata `json:"metadata"`
}

// NewPair builds a preference pair from a flattened context. The actual
// outcome becomes the chosen completion; the model's prediction, when it
// disagrees, becomes the rejected one.
//
// Outputs:
//
//	error - ErrExport when predicted and actual agree; an agreeing
//	        prediction carries no preference signal.
func NewPair(record *ContextRecord, predicted, actual string) (*DPORecord, error) {
	if predicted == actual {
		return nil, fmt.Errorf("%w: prediction %q matches the outcome, no pair to learn from",
			ErrExport, predicted)
	}
	return &DPORecord{
		Prompt:   record.Prompt(),
		Chosen:   actual,
		Rejected: predicted,
		Metadata: PairMetadata{
			NodeID:                record.NodeID,
			Depth:                 record.Depth,
			CumulativeProbability: record.CumulativeProbability,
			Predicted:             predicted,
			Actual:                actual,
		},
	}, nil
}

// WriteJSONL streams records as one JSON object per line.
func WriteJSONL(w io.Writer, records []*DPORecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("%w: encode record %s: %v", ErrExport, record.Metadata.NodeID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrExport, err)
	}
	return nil
}
