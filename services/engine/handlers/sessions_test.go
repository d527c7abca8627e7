// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/foresight/services/engine/collab"
	"github.com/AleutianAI/foresight/services/engine/generator"
	"github.com/AleutianAI/foresight/services/engine/tree"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testManager() *Manager {
	researcher := &collab.ScriptedResearcher{
		Result: &collab.ResearchResult{
			Summary:    "coverage is consistent across outlets",
			Sources:    []tree.Citation{{URL: "https://example.com/report", Title: "Report"}},
			Confidence: 0.7,
		},
	}
	synthesizer := &collab.ScriptedSynthesizer{
		Candidates: []tree.OutcomeCandidate{
			{Event: "talks make progress", Probability: 0.6,
				Justification: "both sides signalled willingness to keep negotiating", Sentiment: 30},
			{Event: "talks stall without agreement", Probability: 0.4,
				Justification: "key sticking points remain unresolved after two rounds", Sentiment: -20},
		},
	}
	return NewManager(researcher, synthesizer, nil)
}

func testRouter(mgr *Manager) *gin.Engine {
	router := gin.New()
	router.GET("/health", HealthCheck)
	v1 := router.Group("/v1")
	sessions := v1.Group("/sessions")
	sessions.POST("", CreateSession(mgr))
	sessions.GET("/:sessionId", GetSession(mgr))
	sessions.GET("/:sessionId/tree", GetTree(mgr))
	sessions.GET("/:sessionId/path", GetPath(mgr))
	sessions.GET("/:sessionId/verify", VerifyTree(mgr))
	sessions.POST("/:sessionId/cancel", CancelSession(mgr))
	sessions.GET("/:sessionId/ws", HandleSessionWebSocket(mgr))
	return router
}

func startSession(t *testing.T, router *gin.Engine, body string) string {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/sessions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id, ok := resp["session_id"].(string)
	require.True(t, ok, "session_id missing: %v", resp)
	return id
}

func waitForFinalState(t *testing.T, mgr *Manager, id string) generator.State {
	t.Helper()
	session, ok := mgr.Get(id)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return session.State().IsFinal()
	}, 5*time.Second, 10*time.Millisecond, "session never finished")
	return session.State()
}

func TestHealthCheck_ReturnsOK(t *testing.T) {
	router := testRouter(testManager())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

func TestCreateSession_RejectsMissingRootEvent(t *testing.T) {
	router := testRouter(testManager())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/sessions", bytes.NewBufferString(`{"max_depth": 2}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_RejectsBadConcurrency(t *testing.T) {
	router := testRouter(testManager())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/sessions",
		bytes.NewBufferString(`{"root_event": "ports reopen", "concurrency": 500}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "concurrency")
}

func TestCreateSession_RegistryFull(t *testing.T) {
	mgr := testManager()
	for i := 0; i < MaxSessions; i++ {
		_, err := mgr.Start(generator.Config{
			RootEvent:   "routine capacity drill",
			MaxDepth:    1,
			Concurrency: 1,
		})
		require.NoError(t, err)
	}

	_, err := mgr.Start(generator.Config{RootEvent: "one past the cap"})
	assert.ErrorIs(t, err, ErrSessionLimit)

	router := testRouter(mgr)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/sessions",
		bytes.NewBufferString(`{"root_event": "one past the cap"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	mgr := testManager()
	router := testRouter(mgr)

	id := startSession(t, router,
		`{"root_event": "port strike announced", "max_depth": 2, "concurrency": 2}`)
	state := waitForFinalState(t, mgr, id)
	assert.Equal(t, generator.StateCompleted, state)

	// Status + stats
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions/"+id, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Stats generator.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	// Root + 2 children + 4 grandchildren.
	assert.Equal(t, 7, status.Stats.NodesTotal)
	assert.Equal(t, 3, status.Stats.Completed)
	assert.Equal(t, 4, status.Stats.Pending)

	// Tree snapshot
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/sessions/"+id+"/tree", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var treeResp struct {
		Tree tree.Snapshot `json:"tree"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &treeResp))
	assert.Len(t, treeResp.Tree.Nodes, 7)
	assert.NotEmpty(t, treeResp.Tree.RootID)

	// Most probable path
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/sessions/"+id+"/path", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var pathResp struct {
		Path []pathStep `json:"path"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pathResp))
	require.Len(t, pathResp.Path, 3)
	assert.Equal(t, "port strike announced", pathResp.Path[0].Event)
	assert.Equal(t, "talks make progress", pathResp.Path[1].Event)
	assert.InDelta(t, 0.6, pathResp.Path[1].CumulativeProbability, 1e-9)
	assert.InDelta(t, 0.36, pathResp.Path[2].CumulativeProbability, 1e-9)

	// Leaf-sum diagnostic
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/sessions/"+id+"/verify", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var verifyResp struct {
		Report tree.LeafSumReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verifyResp))
	assert.True(t, verifyResp.Report.IsValid)
	assert.Equal(t, 4, verifyResp.Report.LeafCount)
}

func TestGetSession_UnknownID(t *testing.T) {
	router := testRouter(testManager())

	for _, path := range []string{
		"/v1/sessions/nope",
		"/v1/sessions/nope/tree",
		"/v1/sessions/nope/path",
		"/v1/sessions/nope/verify",
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestCancelSession_AfterCompletionConflicts(t *testing.T) {
	mgr := testManager()
	router := testRouter(mgr)

	id := startSession(t, router, `{"root_event": "election called early", "max_depth": 1}`)
	waitForFinalState(t, mgr, id)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/sessions/"+id+"/cancel", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// blockUntil makes a researcher that parks every call until the channel
// closes, keeping a session in the running state for as long as a test
// needs it there.
func blockUntil(release <-chan struct{}) func(context.Context, string, string, int) (*collab.ResearchResult, error) {
	return func(ctx context.Context, event, contextText string, depth int) (*collab.ResearchResult, error) {
		select {
		case <-release:
			return &collab.ResearchResult{Summary: "late arrival"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestCancelSession_Running(t *testing.T) {
	release := make(chan struct{})
	mgr := NewManager(
		&collab.ScriptedResearcher{
			ResearchFunc: blockUntil(release),
		},
		&collab.ScriptedSynthesizer{
			Candidates: []tree.OutcomeCandidate{
				{Event: "only branch", Probability: 1.0,
					Justification: "single deterministic continuation for the test", Sentiment: 0},
			},
		},
		nil,
	)
	router := testRouter(mgr)

	id := startSession(t, router, `{"root_event": "satellite launch delayed", "max_depth": 3}`)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/sessions/"+id+"/cancel", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)

	close(release)
	state := waitForFinalState(t, mgr, id)
	assert.Equal(t, generator.StateCancelled, state)
}
