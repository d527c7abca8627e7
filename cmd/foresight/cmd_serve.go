// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/engine/collab"
	"github.com/AleutianAI/foresight/services/engine/handlers"
	"github.com/AleutianAI/foresight/services/engine/observability"
	"github.com/AleutianAI/foresight/services/engine/routes"
)

// runServe starts the same HTTP surface as the standalone engine service,
// for single-binary deployments.
func runServe(cmd *cobra.Command, args []string) {
	port := os.Getenv("ENGINE_PORT")
	if port == "" {
		port = "12320"
	}

	metrics := observability.InitMetrics()

	synthesizer, err := collab.NewSynthesizer(os.Getenv("SYNTHESIS_BACKEND"))
	if err != nil {
		log.Fatalf("failed to initialize the synthesis backend: %v", err)
	}
	mgr := handlers.NewManager(collab.NewHTTPResearcher(), synthesizer, metrics)

	router := gin.Default()
	routes.SetupRoutes(router, mgr)

	slog.Info("Scenario engine listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
