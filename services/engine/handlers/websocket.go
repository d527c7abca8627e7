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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleSessionWebSocket streams progress events for one session until the
// session reaches a final state or the client disconnects.
//
// The first frame is the session's current stats so late subscribers can
// seed their view; subsequent frames are generator events. A subscriber
// that cannot keep up loses events rather than stalling generation, so the
// client should re-fetch the tree snapshot after the final frame.
func HandleSessionWebSocket(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionOr404(c, mgr)
		if !ok {
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("Websocket client connected", "session_id", session.ID)

		events, unsubscribe := session.Subscribe()
		defer unsubscribe()

		if err := sendJSON(ws, gin.H{
			"action":     "subscribed",
			"session_id": session.ID,
			"stats":      session.Stats(),
		}); err != nil {
			return
		}
		// Subscribe races the run: the session may have finished before
		// the subscription existed, in which case no final event will
		// ever arrive on the channel.
		if session.State().IsFinal() {
			_ = sendJSON(ws, gin.H{
				"action":     "session_done",
				"session_id": session.ID,
				"state":      session.State(),
				"stats":      session.Stats(),
			})
			return
		}

		// Reads only surface client disconnects; the stream is one-way.
		go func() {
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					unsubscribe()
					return
				}
			}
		}()

		for ev := range events {
			if err := sendJSON(ws, ev); err != nil {
				return
			}
		}
		_ = sendJSON(ws, gin.H{
			"action":     "session_done",
			"session_id": session.ID,
			"state":      session.State(),
			"stats":      session.Stats(),
		})
		slog.Info("Websocket stream finished", "session_id", session.ID, "state", session.State())
	}
}
