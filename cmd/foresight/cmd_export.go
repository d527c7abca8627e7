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
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/foresight/services/engine/dpo"
)

// predictAnswer is the stand-in path classifier for CLI exports: a path
// whose leaf carries positive sentiment counts as a YES prediction.
// A real pipeline replaces this with a model pass over each prompt.
func predictAnswer(record *dpo.ContextRecord) string {
	if record.Sentiment > 0 {
		return "YES"
	}
	return "NO"
}

func runExport(cmd *cobra.Command, args []string) {
	actual := strings.ToUpper(strings.TrimSpace(actualAnswer))
	if actual != "YES" && actual != "NO" {
		log.Fatalf("--actual must be YES or NO, got %q", actualAnswer)
	}

	session, err := runSession(scenarioPath)
	if err != nil {
		log.Fatalf("generation failed: %v", err)
	}

	records, err := dpo.FlattenLeaves(session.Store(), session.Config.RootEvent)
	if err != nil {
		log.Fatalf("flattening failed: %v", err)
	}

	var pairs []*dpo.DPORecord
	skipped := 0
	for _, record := range records {
		pair, err := dpo.NewPair(record, predictAnswer(record), actual)
		if err != nil {
			// Paths whose prediction already matches the outcome
			// carry no preference signal.
			if errors.Is(err, dpo.ErrExport) {
				skipped++
				continue
			}
			log.Fatalf("pairing failed: %v", err)
		}
		pairs = append(pairs, pair)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("failed to create %s: %v", outputPath, err)
	}
	defer out.Close()
	if err := dpo.WriteJSONL(out, pairs); err != nil {
		log.Fatalf("writing JSONL failed: %v", err)
	}

	fmt.Printf("Wrote %d preference pairs to %s (%d paths skipped as already correct)\n",
		len(pairs), outputPath, skipped)
}
