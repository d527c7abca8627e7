// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers exposes generation sessions over HTTP for the rendering
// collaborator: session lifecycle, tree snapshots, derived path views, and
// a websocket progress stream.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/foresight/services/engine/collab"
	"github.com/AleutianAI/foresight/services/engine/generator"
	"github.com/AleutianAI/foresight/services/engine/observability"
)

// MaxSessions caps the number of sessions held in memory. Trees are not
// persisted; old sessions are evicted only by restarting the service.
const MaxSessions = 64

// ErrSessionLimit is returned by Start when the registry is full.
var ErrSessionLimit = errors.New("session limit reached")

// Manager owns the in-memory session registry and starts generation runs
// against the configured collaborators.
//
// Thread Safety: safe for concurrent use.
type Manager struct {
	researcher  collab.Researcher
	synthesizer collab.Synthesizer
	metrics     *observability.EngineMetrics

	mu       sync.RWMutex
	sessions map[string]*generator.Session
}

// NewManager creates a manager running sessions against the given
// collaborators. Metrics may be nil.
func NewManager(researcher collab.Researcher, synthesizer collab.Synthesizer,
	metrics *observability.EngineMetrics) *Manager {
	return &Manager{
		researcher:  researcher,
		synthesizer: synthesizer,
		metrics:     metrics,
		sessions:    make(map[string]*generator.Session),
	}
}

// Start validates the config, registers a new session, and launches its
// generation run in the background.
func (m *Manager) Start(cfg generator.Config) (*generator.Session, error) {
	session, err := generator.NewSession(cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if len(m.sessions) >= MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d sessions in memory", ErrSessionLimit, MaxSessions)
	}
	m.sessions[session.ID] = session
	m.mu.Unlock()

	gen := generator.New(session, m.researcher, m.synthesizer,
		generator.WithMetrics(m.metrics))
	go func() {
		// The run owns its own lifetime; clients cancel through the
		// session, not by disconnecting.
		if err := gen.Run(context.Background()); err != nil {
			slog.Error("Generation run aborted", "session_id", session.ID, "error", err)
		}
	}()
	return session, nil
}

// Get returns the session with the given identifier.
func (m *Manager) Get(id string) (*generator.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
