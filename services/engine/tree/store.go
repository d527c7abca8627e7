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
	"sync"
)

// SiblingSumTolerance is how far a freshly attached child set's probability
// sum may deviate from 1.0. Not derived from an external requirement; tests
// pin it.
const SiblingSumTolerance = 1e-3

// Store owns the nodes of one scenario tree: an identifier-to-node map plus
// the root identifier. Registration is append-only; nodes are never deleted
// individually. The whole store is discarded when its generation session
// ends or is replaced.
//
// Thread Safety: safe for concurrent use. Reads take the read lock; the
// orchestrator is the only writer, and AttachChildren commits one parent's
// full child set as a single operation so partial sibling sets are never
// visible.
type Store struct {
	mu     sync.RWMutex
	nodes  map[string]*ScenarioNode
	rootID string
}

// NewStore creates a store owning the given root node.
func NewStore(root *ScenarioNode) *Store {
	s := &Store{
		nodes:  make(map[string]*ScenarioNode),
		rootID: root.ID,
	}
	s.nodes[root.ID] = root
	return s
}

// RootID returns the identifier of the root node.
func (s *Store) RootID() string {
	return s.rootID
}

// Len returns the number of registered nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Register adds a node to the store.
//
// Outputs:
//
//	error - ErrDuplicateID if the identifier already exists.
func (s *Store) Register(node *ScenarioNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(node)
}

func (s *Store) registerLocked(node *ScenarioNode) error {
	if _, exists := s.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, node.ID)
	}
	s.nodes[node.ID] = node
	return nil
}

// Get returns the node with the given identifier.
//
// The returned pointer is the live node; callers outside the orchestrator
// must treat it as read-only. Use Snapshot or the Resolver for value copies.
//
// Outputs:
//
//	error - ErrNodeNotFound if the identifier is unknown.
func (s *Store) Get(id string) (*ScenarioNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return node, nil
}

// SetStatus applies a forward-only status transition to a node.
//
// Outputs:
//
//	error - ErrNodeNotFound for an unknown id, ErrStatusTransition for a
//	        non-forward transition.
func (s *Store) SetStatus(id string, next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if !node.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s (node %s)", ErrStatusTransition, node.Status, next, id)
	}
	node.Status = next
	return nil
}

// AttachChildren validates and commits a parent's full child set in one
// operation, then marks the parent completed.
//
// Description:
//
//	Every child must reference parentID, sit exactly one level below the
//	parent, and the set's probabilities must sum to 1.0 within
//	SiblingSumTolerance (normalization is enforced before attachment, not
//	after). The parent must still be non-terminal and able to reach
//	completed through the forward-only transitions. On success the
//	parent's ChildIDs are set in the given order and its status becomes
//	completed.
//
// Outputs:
//
//	error - ErrNodeNotFound, ErrParentTerminal, ErrStatusTransition,
//	        ErrInvariant, or ErrDuplicateID. On any error the store is
//	        unchanged.
func (s *Store) AttachChildren(parentID string, children []*ScenarioNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.nodes[parentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, parentID)
	}
	if parent.Status.IsTerminal() {
		return fmt.Errorf("%w: %s (%s)", ErrParentTerminal, parentID, parent.Status)
	}
	// Attaching commits an expansion: the parent advances to completed
	// through the same forward-only transitions SetStatus enforces, so a
	// pending parent passes through processing rather than jumping.
	status := parent.Status
	if status == StatusPending {
		if !status.CanTransitionTo(StatusProcessing) {
			return fmt.Errorf("%w: %s -> %s (node %s)", ErrStatusTransition, status, StatusProcessing, parentID)
		}
		status = StatusProcessing
	}
	if !status.CanTransitionTo(StatusCompleted) {
		return fmt.Errorf("%w: %s -> %s (node %s)", ErrStatusTransition, parent.Status, StatusCompleted, parentID)
	}
	if len(children) == 0 {
		return fmt.Errorf("%w: empty child set for %s", ErrInvariant, parentID)
	}

	sum := 0.0
	for _, child := range children {
		if child.ParentID != parentID {
			return fmt.Errorf("%w: child %s references parent %q, want %q",
				ErrInvariant, child.ID, child.ParentID, parentID)
		}
		if child.Depth != parent.Depth+1 {
			return fmt.Errorf("%w: child %s at depth %d, want %d",
				ErrInvariant, child.ID, child.Depth, parent.Depth+1)
		}
		if math.IsNaN(child.Probability) || math.IsInf(child.Probability, 0) {
			return fmt.Errorf("%w: child %s has non-finite probability", ErrInvariant, child.ID)
		}
		if _, exists := s.nodes[child.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, child.ID)
		}
		sum += child.Probability
	}
	if math.Abs(sum-1.0) > SiblingSumTolerance {
		return fmt.Errorf("%w: sibling probabilities sum to %.6f for parent %s",
			ErrInvariant, sum, parentID)
	}

	childIDs := make([]string, len(children))
	for i, child := range children {
		s.nodes[child.ID] = child
		childIDs[i] = child.ID
	}
	parent.ChildIDs = childIDs
	parent.Status = StatusCompleted
	return nil
}

// Children returns the live child nodes of the given parent in insertion
// order. Read-only access only.
func (s *Store) Children(parentID string) ([]*ScenarioNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parent, ok := s.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, parentID)
	}
	children := make([]*ScenarioNode, 0, len(parent.ChildIDs))
	for _, id := range parent.ChildIDs {
		if child, ok := s.nodes[id]; ok {
			children = append(children, child)
		}
	}
	return children, nil
}

// Snapshot returns a deep value copy of every node keyed by identifier,
// plus the root identifier. The copy is acyclic (parent links are ids) and
// safe to serialize or hand to the rendering collaborator.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{
		RootID: s.rootID,
		Nodes:  make(map[string]*ScenarioNode, len(s.nodes)),
	}
	for id, node := range s.nodes {
		snap.Nodes[id] = node.Clone()
	}
	return snap
}

// Snapshot is an acyclic value copy of a whole tree at one moment.
type Snapshot struct {
	RootID string                   `json:"root_id"`
	Nodes  map[string]*ScenarioNode `json:"nodes"`
}

// CountByStatus tallies nodes per status. Used for session statistics.
func (s *Store) CountByStatus() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, 4)
	for _, node := range s.nodes {
		counts[node.Status]++
	}
	return counts
}
