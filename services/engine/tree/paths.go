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

import (
	"fmt"
	"math"
)

// LeafSumTolerance is how far the summed cumulative probability of all
// leaves may drift from 1.0 before VerifyLeafProbabilitySum reports the tree
// invalid. Per-node renormalization error accumulates across depth, so this
// is a diagnostic threshold, not a construction invariant.
const LeafSumTolerance = 0.02

// CumulativeProbability left-folds the local probabilities along an
// ancestry path, starting from 1.0. The root's own probability (1.0) is a
// neutral factor.
func CumulativeProbability(path []PathNode) float64 {
	p := 1.0
	for _, step := range path {
		p *= step.Probability
	}
	return p
}

// MostProbablePath returns the root-to-leaf chain obtained by always
// descending into the child with the greatest local probability.
//
// Description:
//
//	Selection uses the local conditional probability, not the cumulative
//	product. Ties break toward the first child in insertion order, so the
//	result is deterministic for a fixed tree.
//
// Outputs:
//
//	[]ScenarioNode - value copies, root first, ending at a childless node.
func MostProbablePath(store *Store) ([]ScenarioNode, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	node, ok := store.nodes[store.rootID]
	if !ok {
		return nil, fmt.Errorf("%w: root %s", ErrNodeNotFound, store.rootID)
	}

	var path []ScenarioNode
	for {
		path = append(path, *node.Clone())
		if len(node.ChildIDs) == 0 {
			return path, nil
		}
		var best *ScenarioNode
		for _, id := range node.ChildIDs {
			child, ok := store.nodes[id]
			if !ok {
				continue
			}
			if best == nil || child.Probability > best.Probability {
				best = child
			}
		}
		if best == nil {
			return path, nil
		}
		node = best
	}
}

// LeafSumReport is the result of the global leaf-probability diagnostic.
type LeafSumReport struct {
	Sum       float64 `json:"sum"`
	LeafCount int     `json:"leaf_count"`
	IsValid   bool    `json:"is_valid"`
}

// VerifyLeafProbabilitySum sums the cumulative probability of every leaf.
//
// Description:
//
//	A leaf is any node without children, including failed nodes and nodes
//	stopped at max depth. In a complete tree the leaves partition the
//	probability mass, so the sum should be close to 1.0; failed expansions
//	leave mass unexpanded at interior depths and show up here as drift.
//	IsValid is true when |sum - 1.0| <= LeafSumTolerance. Diagnostic only:
//	construction never enforces this.
func VerifyLeafProbabilitySum(store *Store) (LeafSumReport, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	root, ok := store.nodes[store.rootID]
	if !ok {
		return LeafSumReport{}, fmt.Errorf("%w: root %s", ErrNodeNotFound, store.rootID)
	}

	report := LeafSumReport{}
	var walk func(node *ScenarioNode, product float64)
	walk = func(node *ScenarioNode, product float64) {
		product *= node.Probability
		if len(node.ChildIDs) == 0 {
			report.Sum += product
			report.LeafCount++
			return
		}
		for _, id := range node.ChildIDs {
			if child, ok := store.nodes[id]; ok {
				walk(child, product)
			}
		}
	}
	walk(root, 1.0)

	report.IsValid = math.Abs(report.Sum-1.0) <= LeafSumTolerance
	return report, nil
}
