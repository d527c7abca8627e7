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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/foresight/services/engine/generator"
	"github.com/AleutianAI/foresight/services/engine/tree"
)

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	RootEvent   string `json:"root_event" binding:"required"`
	Context     string `json:"context,omitempty"`
	Timeframe   string `json:"timeframe,omitempty"`
	MaxDepth    int    `json:"max_depth,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
}

// CreateSession starts a generation session and returns its identifier
// immediately; the tree builds in the background.
func CreateSession(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		session, err := mgr.Start(generator.Config{
			RootEvent:   req.RootEvent,
			Context:     req.Context,
			Timeframe:   req.Timeframe,
			MaxDepth:    req.MaxDepth,
			Concurrency: req.Concurrency,
		})
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, generator.ErrConfig):
				status = http.StatusBadRequest
			case errors.Is(err, ErrSessionLimit):
				status = http.StatusTooManyRequests
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Session created", "session_id", session.ID, "root_event", req.RootEvent)
		c.JSON(http.StatusCreated, gin.H{
			"session_id": session.ID,
			"state":      session.State(),
			"root_id":    session.Store().RootID(),
		})
	}
}

// sessionOr404 resolves the path parameter or writes the 404 itself.
func sessionOr404(c *gin.Context, mgr *Manager) (*generator.Session, bool) {
	id := c.Param("sessionId")
	session, ok := mgr.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session", "session_id": id})
		return nil, false
	}
	return session, true
}

// GetSession returns lifecycle state and tree statistics.
func GetSession(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionOr404(c, mgr)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": session.ID,
			"config":     session.Config,
			"stats":      session.Stats(),
		})
	}
}

// GetTree returns a deep value snapshot of the session's tree, safe to
// render while generation is still running.
func GetTree(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionOr404(c, mgr)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": session.ID,
			"state":      session.State(),
			"tree":       session.Snapshot(),
		})
	}
}

// pathStep is one hop of the most-probable path with its running product.
type pathStep struct {
	ID                    string  `json:"id"`
	Event                 string  `json:"event"`
	Probability           float64 `json:"probability"`
	CumulativeProbability float64 `json:"cumulative_probability"`
	Sentiment             int     `json:"sentiment"`
	Depth                 int     `json:"depth"`
}

// GetPath returns the most probable root-to-leaf chain with cumulative
// probabilities.
func GetPath(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionOr404(c, mgr)
		if !ok {
			return
		}
		path, err := tree.MostProbablePath(session.Store())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		steps := make([]pathStep, len(path))
		cumulative := 1.0
		for i, node := range path {
			cumulative *= node.Probability
			steps[i] = pathStep{
				ID:                    node.ID,
				Event:                 node.Event,
				Probability:           node.Probability,
				CumulativeProbability: cumulative,
				Sentiment:             node.Sentiment,
				Depth:                 node.Depth,
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": session.ID,
			"state":      session.State(),
			"path":       steps,
		})
	}
}

// VerifyTree runs the leaf probability mass diagnostic.
func VerifyTree(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionOr404(c, mgr)
		if !ok {
			return
		}
		report, err := tree.VerifyLeafProbabilitySum(session.Store())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": session.ID,
			"state":      session.State(),
			"report":     report,
		})
	}
}

// CancelSession requests cooperative cancellation. In-flight node
// expansions finish; the partial tree stays readable.
func CancelSession(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionOr404(c, mgr)
		if !ok {
			return
		}
		if session.State().IsFinal() {
			c.JSON(http.StatusConflict, gin.H{
				"error": "session already finished",
				"state": session.State(),
			})
			return
		}
		session.Cancel()
		slog.Info("Session cancellation requested", "session_id", session.ID)
		c.JSON(http.StatusAccepted, gin.H{
			"session_id": session.ID,
			"state":      session.State(),
		})
	}
}
