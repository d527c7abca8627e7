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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxDepth bounds the tree when the caller gives no depth.
	DefaultMaxDepth = 3

	// DefaultConcurrency bounds in-flight node expansions per layer.
	DefaultConcurrency = 4

	// MaxConcurrency caps the concurrency a caller may request; the
	// collaborators behind the engine have their own quotas.
	MaxConcurrency = 16
)

// Config describes one generation session.
//
// MaxDepth is the deepest node level the tree may reach; nodes at that level
// are created but never expanded. LayerDelay, when positive, paces the start
// of each layer after the first to respect collaborator quotas.
type Config struct {
	RootEvent   string        `yaml:"root_event" json:"root_event"`
	Context     string        `yaml:"context,omitempty" json:"context,omitempty"`
	Timeframe   string        `yaml:"timeframe,omitempty" json:"timeframe,omitempty"`
	MaxDepth    int           `yaml:"max_depth" json:"max_depth"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	LayerDelay  time.Duration `yaml:"layer_delay,omitempty" json:"layer_delay,omitempty"`

	// Backend selects the synthesis collaborator for CLI runs: "openai"
	// or "ollama". The HTTP service wires collaborators itself.
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`
}

// ApplyDefaults fills zero fields with the package defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Backend == "" {
		c.Backend = "openai"
	}
}

// Validate checks the configuration after defaults are applied.
//
// Outputs:
//
//	error - ErrConfig describing the first offending field.
func (c *Config) Validate() error {
	if c.RootEvent == "" {
		return fmt.Errorf("%w: root_event is required", ErrConfig)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("%w: max_depth must be >= 1, got %d", ErrConfig, c.MaxDepth)
	}
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("%w: concurrency must be in [1,%d], got %d",
			ErrConfig, MaxConcurrency, c.Concurrency)
	}
	if c.LayerDelay < 0 {
		return fmt.Errorf("%w: layer_delay must not be negative", ErrConfig)
	}
	switch c.Backend {
	case "openai", "ollama":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrConfig, c.Backend)
	}
	return nil
}

// LoadScenario reads a yaml scenario file, applies defaults, and validates.
//
// Example file:
//
//	root_event: "Fed announces surprise rate decision"
//	timeframe: "next 6 months"
//	max_depth: 3
//	concurrency: 4
//	backend: ollama
func LoadScenario(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read scenario file: %v", ErrConfig, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse scenario file: %v", ErrConfig, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
