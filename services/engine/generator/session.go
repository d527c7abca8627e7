// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/foresight/services/engine/tree"
)

// State is the lifecycle state of a generation session.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"

	// StateFailed is reached only when the store itself rejects an
	// operation, which indicates a bug rather than a collaborator problem.
	// Individual node failures never end a session.
	StateFailed State = "failed"
)

// IsFinal returns true once the session can no longer change.
func (s State) IsFinal() bool {
	return s != StateRunning
}

// Stats summarizes a session's tree at one moment.
type Stats struct {
	State      State      `json:"state"`
	NodesTotal int        `json:"nodes_total"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	Pending    int        `json:"pending"`
	Processing int        `json:"processing"`
	Layers     int        `json:"layers"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Event is one progress notification published to session subscribers.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	NodeID    string    `json:"node_id,omitempty"`
	Scenario  string    `json:"scenario,omitempty"`
	Depth     int       `json:"depth"`
	State     State     `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Progress event types.
const (
	EventNodeProcessing = "node_processing"
	EventNodeCompleted  = "node_completed"
	EventNodeFailed     = "node_failed"
	EventLayerComplete  = "layer_complete"
	EventSessionDone    = "session_done"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events; the tree snapshot remains the
// source of truth.
const subscriberBuffer = 64

// Session owns one scenario tree under construction: the store, the config
// that bounds it, lifecycle state, and progress subscribers.
//
// Thread Safety: safe for concurrent use. The generator is the only writer
// of tree content; state and subscriptions are guarded by the session lock.
type Session struct {
	ID     string
	Config Config

	store    *tree.Store
	resolver *tree.Resolver

	mu          sync.RWMutex
	state       State
	layers      int
	startedAt   time.Time
	endedAt     *time.Time
	cancel      func()
	subscribers map[int]chan Event
	nextSubID   int
}

// NewSession validates the config and creates a session with a pending root
// node, ready for a Generator to run.
func NewSession(cfg Config) (*Session, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root := tree.NewRoot(cfg.RootEvent)
	store := tree.NewStore(root)
	return &Session{
		ID:          uuid.NewString(),
		Config:      cfg,
		store:       store,
		resolver:    tree.NewResolver(store),
		state:       StateRunning,
		startedAt:   time.Now(),
		subscribers: make(map[int]chan Event),
	}, nil
}

// Store returns the session's tree store.
func (s *Session) Store() *tree.Store {
	return s.store
}

// Resolver returns the session's read-only view resolver.
func (s *Session) Resolver() *tree.Resolver {
	return s.resolver
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns a point-in-time summary of the session.
func (s *Session) Stats() Stats {
	counts := s.store.CountByStatus()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		State:      s.state,
		NodesTotal: s.store.Len(),
		Completed:  counts[tree.StatusCompleted],
		Failed:     counts[tree.StatusFailed],
		Pending:    counts[tree.StatusPending],
		Processing: counts[tree.StatusProcessing],
		Layers:     s.layers,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
	}
}

// Snapshot returns a deep value copy of the whole tree.
func (s *Session) Snapshot() *tree.Snapshot {
	return s.store.Snapshot()
}

// bindCancel stores the run context's cancel function so Cancel can reach a
// generation loop started elsewhere.
func (s *Session) bindCancel(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

// Cancel requests cooperative cancellation. In-flight node expansions
// finish; unstarted nodes stay pending. Idempotent; a no-op once the
// session reached a final state.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// finish moves the session to a final state. The first final state wins;
// later calls are ignored.
func (s *Session) finish(state State) {
	s.mu.Lock()
	if s.state.IsFinal() {
		s.mu.Unlock()
		return
	}
	s.state = state
	now := time.Now()
	s.endedAt = &now
	s.mu.Unlock()

	s.publish(Event{Type: EventSessionDone, State: state})
}

// layerDone bumps the completed-layer counter.
func (s *Session) layerDone() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers++
	return s.layers
}

// Subscribe registers a progress listener. The returned cancel function
// must be called to release the channel; the channel is closed when either
// the subscription is cancelled or the session reaches a final state.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// publish fans an event out to every subscriber without blocking the
// generation loop. Slow subscribers lose events rather than stall expansion.
func (s *Session) publish(ev Event) {
	ev.SessionID = s.ID
	ev.Timestamp = time.Now()

	// Sends happen under the read lock so a concurrent unsubscribe (which
	// closes under the write lock) can never race a send on a closed
	// channel. Sends never block, so the lock is held only briefly.
	s.mu.RLock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.RUnlock()

	if ev.Type == EventSessionDone {
		s.mu.Lock()
		for id, ch := range s.subscribers {
			delete(s.subscribers, id)
			close(ch)
		}
		s.mu.Unlock()
	}
}
