// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the server's YAML configuration with position
// tracking, so a malformed oocached.yaml can be reported with a file:line
// pointer rather than a bare decode error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Position tracks the location of a node in the source file.
type Position struct {
	File   string
	Line   int
	Column int
}

// WithPosition builds a Position for file at line/column.
func WithPosition(file string, line, column int) Position {
	return Position{File: file, Line: line, Column: column}
}

const defaultBindAddr = ":8080"

// Config is the server's runtime configuration. The cache's bucket prefix
// depth is fixed at its default (1) for every frontend sharing cacheDir;
// it is not a server-wide knob because every process addressing the same
// cacheDir must agree on it (see cachemanager.WithLevel for direct
// embedders that do want to vary it).
type Config struct {
	CacheDir string `yaml:"cache_dir"`
	BindAddr string `yaml:"bind_addr"`

	position Position
}

// Pos returns where Config was parsed from.
func (c *Config) Pos() Position { return c.position }

// Loader reads and parses a YAML config file.
type Loader struct {
	filename string
}

// NewLoader creates a Loader for the given file.
func NewLoader(filename string) *Loader {
	return &Loader{filename: filename}
}

// Load reads and parses the config file, applying defaults and validating
// the result.
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.filename)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", l.filename, err)
	}
	return l.LoadBytes(data)
}

// LoadBytes parses YAML config from bytes.
func (l *Loader) LoadBytes(data []byte) (*Config, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("config: parsing YAML: %w", err)
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return nil, fmt.Errorf("config: %s: expected a YAML document", l.filename)
	}

	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: %s: expected a mapping at the document root", l.filename)
	}

	cfg := &Config{
		BindAddr: defaultBindAddr,
		position: WithPosition(l.filename, root.Line, root.Column),
	}
	if err := root.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %s:%d: decoding: %w", l.filename, root.Line, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.CacheDir == "" {
		return fmt.Errorf("config: %s: cache_dir is required", cfg.position.File)
	}
	if cfg.BindAddr == "" {
		return fmt.Errorf("config: %s: bind_addr must not be empty", cfg.position.File)
	}
	return nil
}
