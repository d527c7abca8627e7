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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/pkg/logging"
)

// --- Global Command Variables ---
var (
	scenarioPath string
	outputPath   string
	actualAnswer string
	verbose      bool

	rootCmd = &cobra.Command{
		Use:   "foresight",
		Short: "A cli to run and serve probabilistic scenario tree forecasts",
		Long: `Foresight expands a seed event into a branching tree of successor
scenarios, each annotated with probability, sentiment, justification
and citations, grounded in external research.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.LevelInfo
			if verbose {
				level = logging.LevelDebug
			}
			logger := logging.New(logging.Config{Level: level, Service: "cli"})
			slog.SetDefault(logger.Slog())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the scenario engine HTTP service",
		Run:   runServe, // Defined in cmd_serve.go
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Run one generation session from a scenario file and print the most probable path",
		Run:   runGenerate, // Defined in cmd_generate.go
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Generate a tree and flatten it into preference-training JSONL",
		Run:   runExport, // Defined in cmd_export.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	generateCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "scenario.yaml",
		"Path to the yaml scenario file")

	exportCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "scenario.yaml",
		"Path to the yaml scenario file")
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "dpo_pairs.jsonl",
		"Path for the JSONL output")
	exportCmd.Flags().StringVar(&actualAnswer, "actual", "",
		"The real-world outcome of the root question (YES or NO)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(exportCmd)
}
