// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/quarrylabs/quarry/pkg/embed"
)

// GlobalFlags holds flags shared across subcommands.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

// Config is the project configuration loaded from .quarry/project.yaml.
type Config struct {
	ProjectID string `yaml:"project_id"`

	Embedding embed.Config `yaml:"embedding"`

	Chunking struct {
		MaxTokens int `yaml:"max_tokens"`
		MinTokens int `yaml:"min_tokens"`
	} `yaml:"chunking"`

	Indexing struct {
		Ignore      []string `yaml:"ignore,omitempty"`
		MaxFileSize int64    `yaml:"max_file_size"`
		BatchSize   int      `yaml:"batch_size"`
	} `yaml:"indexing"`

	Workers struct {
		Extract int `yaml:"extract"`
		Embed   int `yaml:"embed"`
	} `yaml:"workers"`
}

// DefaultConfig returns a configuration with sane local defaults.
func DefaultConfig(projectID string) *Config {
	cfg := &Config{ProjectID: projectID}
	cfg.Embedding = embed.Config{
		Provider: "ollama",
		Model:    "nomic-embed-text",
		BaseURL:  "http://localhost:11434",
	}
	cfg.Chunking.MaxTokens = 400
	cfg.Chunking.MinTokens = 40
	cfg.Indexing.MaxFileSize = 1 << 20
	cfg.Indexing.BatchSize = 32
	cfg.Workers.Extract = 4
	cfg.Workers.Embed = 4
	return cfg
}

// ConfigDir returns the .quarry directory for a repository root.
func ConfigDir(root string) string {
	return filepath.Join(root, ".quarry")
}

// ConfigPath returns the path of the project configuration file.
func ConfigPath(root string) string {
	return filepath.Join(ConfigDir(root), "project.yaml")
}

// IndexPath returns the path of the persistent index database.
func IndexPath(root string) string {
	return filepath.Join(ConfigDir(root), "index.db")
}

// ReportPath returns the path of the last ingestion run report.
func ReportPath(root string) string {
	return filepath.Join(ConfigDir(root), "last_run.json")
}

// LoadConfig reads the project configuration. With an empty path it looks
// for .quarry/project.yaml in the current directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		path = ConfigPath(cwd)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no configuration at %s (run 'quarry init' first)", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%s: project_id is required", path)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// SaveConfig writes the configuration as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig(cfg.ProjectID)
	if cfg.Embedding.Provider == "" {
		cfg.Embedding = def.Embedding
	}
	if cfg.Chunking.MaxTokens <= 0 {
		cfg.Chunking.MaxTokens = def.Chunking.MaxTokens
	}
	if cfg.Chunking.MinTokens <= 0 {
		cfg.Chunking.MinTokens = def.Chunking.MinTokens
	}
	if cfg.Indexing.MaxFileSize <= 0 {
		cfg.Indexing.MaxFileSize = def.Indexing.MaxFileSize
	}
	if cfg.Indexing.BatchSize <= 0 {
		cfg.Indexing.BatchSize = def.Indexing.BatchSize
	}
	if cfg.Workers.Extract <= 0 {
		cfg.Workers.Extract = def.Workers.Extract
	}
	if cfg.Workers.Embed <= 0 {
		cfg.Workers.Embed = def.Workers.Embed
	}
}
