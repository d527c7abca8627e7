// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generator runs the breadth-first construction of a scenario tree:
// layer by layer, each pending node is expanded through research, synthesis,
// validation and normalization, and its children are attached atomically.
//
// Concurrency is bounded per layer. Cancellation is cooperative: the context
// is checked before each layer and before each node starts, and unstarted
// nodes stay pending. A node that has been dispatched runs to completion;
// its collaborator calls receive a context detached from the run's
// cancellation, so they are never aborted mid-flight.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/foresight/services/engine/collab"
	"github.com/AleutianAI/foresight/services/engine/observability"
	"github.com/AleutianAI/foresight/services/engine/tree"
)

// expansionAttempts is how many times one node's expansion pipeline runs
// before the node is marked failed: the first try plus one retry.
const expansionAttempts = 2

// Generator drives one session's tree construction.
//
// Thread Safety: one Run per Generator. The session it builds may be read
// concurrently while Run is in progress.
type Generator struct {
	session     *Session
	researcher  collab.Researcher
	synthesizer collab.Synthesizer
	metrics     *observability.EngineMetrics
	limiter     *rate.Limiter
	tracer      oteltrace.Tracer
	log         *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithMetrics wires Prometheus metrics. Without it the generator runs
// unobserved, which is what unit tests want.
func WithMetrics(m *observability.EngineMetrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) { g.log = log }
}

// New creates a generator for the given session and collaborators.
//
// If the session's config has a LayerDelay, layers after the first are paced
// by a rate limiter so collaborator quotas are respected.
func New(session *Session, researcher collab.Researcher, synthesizer collab.Synthesizer, opts ...Option) *Generator {
	g := &Generator{
		session:     session,
		researcher:  researcher,
		synthesizer: synthesizer,
		tracer:      otel.Tracer("foresight/engine/generator"),
		log:         slog.Default(),
	}
	if d := session.Config.LayerDelay; d > 0 {
		g.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run builds the tree breadth-first until every reachable node at depth <
// MaxDepth has been expanded, the context is cancelled, or the store rejects
// an operation.
//
// Outputs:
//
//	error - nil for completed and cancelled sessions (the partial tree is
//	        the result); non-nil only when the store itself rejects an
//	        operation, which moves the session to the failed state.
func (g *Generator) Run(ctx context.Context) error {
	if g.session.State().IsFinal() {
		return fmt.Errorf("%w: session %s is %s", ErrSessionState, g.session.ID, g.session.State())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.session.bindCancel(cancel)

	ctx, span := g.tracer.Start(ctx, "generation_session",
		oteltrace.WithAttributes(
			attribute.String("session.id", g.session.ID),
			attribute.Int("session.max_depth", g.session.Config.MaxDepth),
			attribute.Int("session.concurrency", g.session.Config.Concurrency),
		))
	defer span.End()

	g.log.Info("Generation session started",
		"session_id", g.session.ID,
		"root_event", g.session.Config.RootEvent,
		"max_depth", g.session.Config.MaxDepth,
		"concurrency", g.session.Config.Concurrency)

	frontier := []string{g.session.Store().RootID()}
	layer := 0

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			return g.end(StateCancelled, nil)
		}
		if g.limiter != nil && layer > 0 {
			if err := g.limiter.Wait(ctx); err != nil {
				return g.end(StateCancelled, nil)
			}
		}

		next, err := g.expandLayer(ctx, layer, frontier)
		if err != nil {
			return g.end(StateFailed, err)
		}

		g.session.layerDone()
		g.session.publish(Event{Type: EventLayerComplete, Depth: layer})
		frontier = next
		layer++
	}

	if ctx.Err() != nil {
		return g.end(StateCancelled, nil)
	}
	return g.end(StateCompleted, nil)
}

// end moves the session to its final state and records the outcome.
func (g *Generator) end(state State, err error) error {
	g.session.finish(state)
	g.metrics.SessionEnded(string(state))

	stats := g.session.Stats()
	if err != nil {
		g.log.Error("Generation session aborted",
			"session_id", g.session.ID, "error", err,
			"nodes", stats.NodesTotal, "completed", stats.Completed, "failed", stats.Failed)
		return err
	}
	g.log.Info("Generation session finished",
		"session_id", g.session.ID, "state", state,
		"nodes", stats.NodesTotal, "completed", stats.Completed,
		"failed", stats.Failed, "pending", stats.Pending)
	return nil
}

// expandLayer processes one frontier with bounded concurrency and returns
// the identifiers of the next frontier.
//
// Only store rejections surface as errors. A collaborator or validation
// failure marks its node failed and the layer carries on.
func (g *Generator) expandLayer(ctx context.Context, layer int, frontier []string) ([]string, error) {
	ctx, span := g.tracer.Start(ctx, "expand_layer",
		oteltrace.WithAttributes(
			attribute.Int("layer.depth", layer),
			attribute.Int("layer.size", len(frontier)),
		))
	defer span.End()
	layerStart := time.Now()

	var (
		mu   sync.Mutex
		next []string
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.session.Config.Concurrency)

	for _, nodeID := range frontier {
		eg.Go(func() error {
			// A node whose slot frees up after cancellation never
			// starts; it stays pending in the partial tree.
			if egCtx.Err() != nil {
				return nil
			}
			// Once dispatched, the node runs to completion. The
			// detached context keeps trace propagation but drops
			// cancellation, so collaborator calls already in flight
			// finish and their children attach.
			childIDs, err := g.expandNode(context.WithoutCancel(egCtx), nodeID)
			if err != nil {
				return err
			}
			mu.Lock()
			next = append(next, childIDs...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	g.metrics.LayerFinished(time.Since(layerStart).Seconds())
	return next, nil
}

// expandNode runs one node through the expansion pipeline and attaches its
// children. Returns the child identifiers that still need expansion (empty
// when the children sit at MaxDepth or the node failed).
func (g *Generator) expandNode(ctx context.Context, nodeID string) ([]string, error) {
	node, err := g.session.Store().Get(nodeID)
	if err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, "expand_node",
		oteltrace.WithAttributes(
			attribute.String("node.id", node.ID),
			attribute.Int("node.depth", node.Depth),
		))
	defer span.End()

	if err := g.session.Store().SetStatus(node.ID, tree.StatusProcessing); err != nil {
		return nil, err
	}
	g.session.publish(Event{Type: EventNodeProcessing, NodeID: node.ID, Scenario: node.Event, Depth: node.Depth})
	g.metrics.ExpansionStarted()
	defer g.metrics.ExpansionEnded()
	start := time.Now()

	candidates, sources, expandErr := g.synthesizeCandidates(ctx, node)
	if expandErr != nil {
		// Per-node failure: mark and move on. Siblings and other
		// branches are unaffected.
		g.log.Warn("Node expansion failed",
			"session_id", g.session.ID, "node_id", node.ID,
			"event", node.Event, "depth", node.Depth, "error", expandErr)
		if err := g.session.Store().SetStatus(node.ID, tree.StatusFailed); err != nil {
			return nil, err
		}
		g.metrics.NodeExpanded("failed", time.Since(start).Seconds())
		g.session.publish(Event{Type: EventNodeFailed, NodeID: node.ID, Scenario: node.Event, Depth: node.Depth})
		return nil, nil
	}

	children := make([]*tree.ScenarioNode, len(candidates))
	for i, cand := range candidates {
		children[i] = tree.NewChild(node, cand, sources)
	}
	if err := g.session.Store().AttachChildren(node.ID, children); err != nil {
		// Normalization ran before attach, so a rejection here is a
		// store-level problem that must abort the session.
		return nil, err
	}
	g.metrics.NodeExpanded("completed", time.Since(start).Seconds())
	g.session.publish(Event{Type: EventNodeCompleted, NodeID: node.ID, Scenario: node.Event, Depth: node.Depth})

	if node.Depth+1 >= g.session.Config.MaxDepth {
		return nil, nil
	}
	childIDs := make([]string, len(children))
	for i, child := range children {
		childIDs[i] = child.ID
	}
	return childIDs, nil
}

// synthesizeCandidates runs research -> synthesize -> validate -> normalize
// with one retry. The returned candidates are normalized and ready to
// attach.
func (g *Generator) synthesizeCandidates(ctx context.Context, node *tree.ScenarioNode) ([]tree.OutcomeCandidate, []tree.Citation, error) {
	path, err := g.session.Resolver().PathFromRoot(node.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExpansion, err)
	}
	ancestry := make([]string, 0, len(path)-1)
	for _, step := range path[:len(path)-1] {
		ancestry = append(ancestry, step.Event)
	}

	var lastErr error
	for attempt := 1; attempt <= expansionAttempts; attempt++ {
		if attempt > 1 {
			g.log.Debug("Retrying node expansion",
				"node_id", node.ID, "attempt", attempt, "error", lastErr)
		}

		research, err := g.researcher.Research(ctx, node.Event, g.session.Config.Context, node.Depth)
		if err != nil {
			g.metrics.CollaboratorError("research")
			lastErr = err
			continue
		}

		candidates, err := g.synthesizer.Synthesize(ctx, collab.SynthesisRequest{
			ParentEvent:     node.Event,
			Depth:           node.Depth,
			ResearchSummary: research.Summary,
			Timeframe:       g.session.Config.Timeframe,
			AncestryPath:    ancestry,
		})
		if err != nil {
			g.metrics.CollaboratorError("synthesis")
			lastErr = err
			continue
		}
		if err := collab.ValidateCandidates(candidates); err != nil {
			g.metrics.CollaboratorError("validation")
			lastErr = err
			continue
		}
		normalized, err := tree.NormalizeCandidates(candidates)
		if err != nil {
			g.metrics.CollaboratorError("validation")
			lastErr = err
			continue
		}
		return normalized, research.Sources, nil
	}
	return nil, nil, fmt.Errorf("%w: %v", ErrExpansion, lastErr)
}
