// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree implements the probabilistic scenario tree: the node data
// model, the identifier-indexed store that owns node lifetime, probability
// normalization, and the read-only derived views (ancestry paths, siblings,
// cumulative probability, most-probable path) consumed by the rendering and
// export collaborators.
//
// Nodes reference their parent by identifier only. Upward and lateral
// navigation (ancestry, siblings) is reconstructed by map lookups, which
// keeps every view acyclic and independently serializable.
package tree

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a scenario node.
//
// Transitions are forward-only: pending -> processing -> {completed, failed}.
// A failed node simply has no children; it is never retried in place.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Citation is one piece of source material backing a scenario's
// justification.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// OutcomeCandidate is one raw successor scenario produced by the
// probability-synthesis collaborator, before normalization.
//
// Probabilities are individually required to be in [0,1] but the set is not
// required to sum to 1.0; NormalizeCandidates enforces the sibling-sum
// invariant before candidates are admitted into the tree.
type OutcomeCandidate struct {
	Event         string  `json:"event" validate:"required,min=3"`
	Probability   float64 `json:"probability" validate:"gte=0,lte=1"`
	Justification string  `json:"justification" validate:"required,min=20"`
	Sentiment     int     `json:"sentiment" validate:"gte=-100,lte=100"`
}

// ScenarioNode is one hypothetical event at one point in the branching
// future.
//
// ParentID is the only upward reference. It is an identifier rather than a
// pointer so that a node can be flattened for serialization without carrying
// a cycle. ChildIDs preserve insertion order; ordering matters for the
// most-probable-path tie-break.
//
// Thread Safety: nodes are mutated only by the Store under its lock. Callers
// outside the store must treat nodes obtained from it as read-only.
type ScenarioNode struct {
	ID            string     `json:"id"`
	Event         string     `json:"event"`
	Probability   float64    `json:"probability"`
	Sentiment     int        `json:"sentiment"`
	Justification string     `json:"justification,omitempty"`
	Sources       []Citation `json:"sources,omitempty"`
	Depth         int        `json:"depth"`
	ParentID      string     `json:"parent_id,omitempty"`
	ChildIDs      []string   `json:"child_ids,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewRoot creates the depth-0 root node for a generation session.
//
// The root carries probability 1.0 (it is the conditioning event, not a
// prediction) and starts pending so the orchestrator expands it like any
// other node.
func NewRoot(event string) *ScenarioNode {
	return &ScenarioNode{
		ID:          uuid.NewString(),
		Event:       event,
		Probability: 1.0,
		Depth:       0,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
}

// NewChild creates a child node from a normalized outcome candidate.
//
// The candidate must already be normalized; NewChild does not re-check the
// sibling-sum invariant (the Store does, at attach time).
func NewChild(parent *ScenarioNode, cand OutcomeCandidate, sources []Citation) *ScenarioNode {
	return &ScenarioNode{
		ID:            uuid.NewString(),
		Event:         cand.Event,
		Probability:   cand.Probability,
		Sentiment:     cand.Sentiment,
		Justification: cand.Justification,
		Sources:       sources,
		Depth:         parent.Depth + 1,
		ParentID:      parent.ID,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}
}

// Clone returns a deep value copy of the node.
func (n *ScenarioNode) Clone() *ScenarioNode {
	c := *n
	if n.Sources != nil {
		c.Sources = make([]Citation, len(n.Sources))
		copy(c.Sources, n.Sources)
	}
	if n.ChildIDs != nil {
		c.ChildIDs = make([]string, len(n.ChildIDs))
		copy(c.ChildIDs, n.ChildIDs)
	}
	return &c
}

// IsRoot returns true if the node has no parent.
func (n *ScenarioNode) IsRoot() bool {
	return n.ParentID == ""
}

// IsLeaf returns true if the node has no children.
func (n *ScenarioNode) IsLeaf() bool {
	return len(n.ChildIDs) == 0
}
