// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import "fmt"

// PathNode is a value copy of one ancestry step, root-first. It carries no
// references back into the tree.
type PathNode struct {
	ID            string  `json:"id"`
	Event         string  `json:"event"`
	Probability   float64 `json:"probability"`
	Sentiment     int     `json:"sentiment"`
	Depth         int     `json:"depth"`
	Justification string  `json:"justification,omitempty"`
}

// SiblingNode is a value copy of one alternative outcome at the same parent.
type SiblingNode struct {
	ID          string  `json:"id"`
	Event       string  `json:"event"`
	Probability float64 `json:"probability"`
	Sentiment   int     `json:"sentiment"`
}

// ChildNode is a value copy of one immediate child plus how much has already
// been explored below it.
type ChildNode struct {
	ID              string  `json:"id"`
	Event           string  `json:"event"`
	Probability     float64 `json:"probability"`
	Sentiment       int     `json:"sentiment"`
	Status          Status  `json:"status"`
	DescendantCount int     `json:"descendant_count"`
}

// Resolver turns the parent/child-referencing tree into flat, acyclic,
// serializable views. It never returns live ScenarioNode objects: the
// consuming contexts (rendering payloads, training-data export records)
// require independently serializable value data.
//
// Read-only and idempotent: repeated calls against an unchanged tree return
// identical values.
type Resolver struct {
	store *Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// PathFromRoot reconstructs the ancestry chain from the root to the target
// node, root-first.
//
// Description:
//
//	Walks ParentID upward from the target collecting value copies, then
//	reverses. Terminates in O(depth): the chain is finite and strictly
//	decreasing in depth.
//
// Outputs:
//
//	[]PathNode - root-first chain ending at the target; length is
//	             target depth + 1.
//	error - ErrNodeNotFound if the id (or, impossibly, an ancestor id) is
//	        unknown.
func (r *Resolver) PathFromRoot(nodeID string) ([]PathNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	node, ok := r.store.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	path := make([]PathNode, 0, node.Depth+1)
	for node != nil {
		path = append(path, PathNode{
			ID:            node.ID,
			Event:         node.Event,
			Probability:   node.Probability,
			Sentiment:     node.Sentiment,
			Depth:         node.Depth,
			Justification: node.Justification,
		})
		if node.ParentID == "" {
			break
		}
		parent, ok := r.store.nodes[node.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: ancestor %s of %s", ErrNodeNotFound, node.ParentID, nodeID)
		}
		node = parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Siblings returns the other children of the target's parent, excluding the
// target itself. Empty for the root.
func (r *Resolver) Siblings(nodeID string) ([]SiblingNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	node, ok := r.store.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if node.ParentID == "" {
		return []SiblingNode{}, nil
	}
	parent, ok := r.store.nodes[node.ParentID]
	if !ok {
		return nil, fmt.Errorf("%w: parent %s of %s", ErrNodeNotFound, node.ParentID, nodeID)
	}

	siblings := make([]SiblingNode, 0, len(parent.ChildIDs))
	for _, id := range parent.ChildIDs {
		if id == nodeID {
			continue
		}
		sib, ok := r.store.nodes[id]
		if !ok {
			continue
		}
		siblings = append(siblings, SiblingNode{
			ID:          sib.ID,
			Event:       sib.Event,
			Probability: sib.Probability,
			Sentiment:   sib.Sentiment,
		})
	}
	return siblings, nil
}

// Children returns value copies of the immediate children, each annotated
// with its descendant count, giving "what has already been explored below"
// context without exposing mutable node references.
func (r *Resolver) Children(nodeID string) ([]ChildNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	node, ok := r.store.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	children := make([]ChildNode, 0, len(node.ChildIDs))
	for _, id := range node.ChildIDs {
		child, ok := r.store.nodes[id]
		if !ok {
			continue
		}
		children = append(children, ChildNode{
			ID:              child.ID,
			Event:           child.Event,
			Probability:     child.Probability,
			Sentiment:       child.Sentiment,
			Status:          child.Status,
			DescendantCount: r.countDescendantsLocked(child),
		})
	}
	return children, nil
}

// DescendantCount returns the number of nodes strictly below the target:
// children, grandchildren, and so on. Zero for a leaf.
func (r *Resolver) DescendantCount(nodeID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	node, ok := r.store.nodes[nodeID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	return r.countDescendantsLocked(node), nil
}

func (r *Resolver) countDescendantsLocked(node *ScenarioNode) int {
	count := 0
	for _, id := range node.ChildIDs {
		child, ok := r.store.nodes[id]
		if !ok {
			continue
		}
		count += 1 + r.countDescendantsLocked(child)
	}
	return count
}
