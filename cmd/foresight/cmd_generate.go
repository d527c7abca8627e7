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
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/engine/collab"
	"github.com/AleutianAI/foresight/services/engine/generator"
	"github.com/AleutianAI/foresight/services/engine/tree"
)

// runSession loads the scenario file and runs one generation session to a
// final state. Ctrl-C cancels cooperatively; the partial tree is returned.
func runSession(scenarioPath string) (*generator.Session, error) {
	cfg, err := generator.LoadScenario(scenarioPath)
	if err != nil {
		return nil, err
	}

	synthesizer, err := collab.NewSynthesizer(cfg.Backend)
	if err != nil {
		return nil, err
	}
	session, err := generator.NewSession(*cfg)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := generator.New(session, collab.NewHTTPResearcher(), synthesizer)
	if err := gen.Run(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

func runGenerate(cmd *cobra.Command, args []string) {
	session, err := runSession(scenarioPath)
	if err != nil {
		log.Fatalf("generation failed: %v", err)
	}

	stats := session.Stats()
	fmt.Printf("Session %s finished: %s\n", session.ID, stats.State)
	fmt.Printf("Nodes: %d total, %d completed, %d failed, %d unexpanded\n\n",
		stats.NodesTotal, stats.Completed, stats.Failed, stats.Pending)

	path, err := tree.MostProbablePath(session.Store())
	if err != nil {
		log.Fatalf("failed to compute the most probable path: %v", err)
	}

	fmt.Println("Most probable path:")
	cumulative := 1.0
	for _, node := range path {
		cumulative *= node.Probability
		indent := strings.Repeat("  ", node.Depth)
		if node.IsRoot() {
			fmt.Printf("%s%s\n", indent, node.Event)
			continue
		}
		fmt.Printf("%s-> %s (p=%.2f, cumulative=%.4f)\n",
			indent, node.Event, node.Probability, cumulative)
	}

	report, err := tree.VerifyLeafProbabilitySum(session.Store())
	if err != nil {
		log.Fatalf("leaf-sum diagnostic failed: %v", err)
	}
	fmt.Printf("\nLeaf probability mass: %.4f over %d leaves (valid: %t)\n",
		report.Sum, report.LeafCount, report.IsValid)
}
