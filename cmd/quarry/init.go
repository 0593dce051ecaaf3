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
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force, nonInteractive bool
	projectID             string
	embeddingProvider     string
	embeddingModel        string
	embeddingBaseURL      string
}

// runInit executes the 'init' CLI command, creating .quarry/project.yaml.
//
// Flags:
//   - --force: overwrite existing configuration
//   - -y: non-interactive mode, use all defaults
//   - --project-id: project identifier (default: directory name)
//   - --embedding-provider: embedding provider (ollama, openai, nomic, mock)
//   - --embedding-model: embedding model name
//   - --embedding-url: embedding backend base URL
//
// Examples:
//
//	quarry init                            Interactive setup
//	quarry init -y                         Use all defaults
//	quarry init --embedding-provider mock  Offline setup for testing
func runInit(args []string) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", configPath)
		os.Exit(1)
	}

	cfg := createInitConfig(cwd, flags)

	if !flags.nonInteractive {
		runInteractiveConfig(bufio.NewReader(os.Stdin), cfg)
	}

	saveInitConfig(cwd, configPath, cfg)
	printNextSteps()
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVar(&f.nonInteractive, "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.projectID, "project-id", "", "Project identifier")
	fs.StringVar(&f.embeddingProvider, "embedding-provider", "", "Embedding provider (ollama, openai, nomic, mock)")
	fs.StringVar(&f.embeddingModel, "embedding-model", "", "Embedding model name")
	fs.StringVar(&f.embeddingBaseURL, "embedding-url", "", "Embedding backend base URL")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry init [options]

Creates the .quarry/project.yaml configuration file.

Examples:
  quarry init -y                          # Non-interactive with defaults
  quarry init --embedding-provider mock   # Offline setup for testing
  quarry init --embedding-url http://myserver:11434

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(cwd string, f initFlags) *Config {
	pid := f.projectID
	if pid == "" {
		pid = filepath.Base(cwd)
	}
	cfg := DefaultConfig(pid)
	if f.embeddingProvider != "" {
		cfg.Embedding.Provider = f.embeddingProvider
	}
	if f.embeddingModel != "" {
		cfg.Embedding.Model = f.embeddingModel
	}
	if f.embeddingBaseURL != "" {
		cfg.Embedding.BaseURL = f.embeddingBaseURL
	}
	return cfg
}

func runInteractiveConfig(reader *bufio.Reader, cfg *Config) {
	fmt.Println("Quarry Project Configuration")
	fmt.Println("============================")
	fmt.Println()

	cfg.ProjectID = prompt(reader, "Project ID", cfg.ProjectID)

	fmt.Println()
	fmt.Println("Embedding Providers: ollama, openai, nomic, mock")
	cfg.Embedding.Provider = prompt(reader, "Embedding provider", cfg.Embedding.Provider)
	switch cfg.Embedding.Provider {
	case "ollama":
		cfg.Embedding.BaseURL = prompt(reader, "Ollama URL", cfg.Embedding.BaseURL)
		cfg.Embedding.Model = prompt(reader, "Embedding model", cfg.Embedding.Model)
	case "openai":
		cfg.Embedding.Model = prompt(reader, "Embedding model", "text-embedding-3-small")
		fmt.Println("Set OPENAI_API_KEY in your environment before ingesting.")
	case "nomic":
		cfg.Embedding.Model = prompt(reader, "Embedding model", "nomic-embed-text-v1.5")
		fmt.Println("Set NOMIC_API_KEY in your environment before ingesting.")
	}
	fmt.Println()
}

func saveInitConfig(cwd, configPath string, cfg *Config) {
	quarryDir := ConfigDir(cwd)
	if err := os.MkdirAll(quarryDir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create .quarry directory: %v\n", err)
		os.Exit(1)
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot save configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s\n", configPath)
	addToGitignore(cwd)
}

func printNextSteps() {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .quarry/project.yaml if needed")
	fmt.Println("  2. Run 'quarry ingest' to index your repository")
	fmt.Println("  3. Run 'quarry search \"your question\"' to search it")
}

// prompt displays an interactive prompt and reads user input from stdin.
// An empty answer returns defaultValue.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

// addToGitignore adds .quarry/ to the project's .gitignore if one exists
// and the entry is not already present. Silently does nothing otherwise.
func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == ".quarry/" || line == ".quarry" || line == "/.quarry/" || line == "/.quarry" {
			return
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}

	_, _ = f.WriteString("\n# Quarry index and configuration\n.quarry/\n")
	fmt.Println("Added .quarry/ to .gitignore")
}
