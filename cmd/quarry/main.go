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

// Package main implements the quarry CLI for ingesting repositories and
// running semantic search over the resulting index.
//
// Usage:
//
//	quarry init                     Create .quarry/project.yaml configuration
//	quarry ingest                   Ingest the current repository
//	quarry search <query> [--json]  Search the index
//	quarry status [--json]          Show index status
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// main parses global flags and dispatches to command handlers.
//
// Global flags:
//   - --version: display version information and exit
//   - --config: path to .quarry/project.yaml
//
// Commands:
//   - init: create .quarry/project.yaml configuration
//   - ingest: ingest the current repository into the index
//   - search: run a semantic query against the index
//   - status: show index status
//   - reset: delete local index data (destructive!)
//   - completion: generate shell completion script
func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .quarry/project.yaml (default: ./.quarry/project.yaml)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `quarry - repository ingestion and semantic retrieval

Quarry walks a repository, extracts functions, classes, and modules with
tree-sitter, embeds them, and maintains a local vector index you can
search with natural language.

Usage:
  quarry <command> [options]

Commands:
  init        Create .quarry/project.yaml configuration
  ingest      Ingest the current repository into the index
  search      Search the index with a natural-language query
  status      Show index status
  reset       Delete local index data (destructive!)
  completion  Generate shell completion script (bash|zsh|fish)

Global Options:
  --config    Path to .quarry/project.yaml
  --version   Show version and exit

Examples:
  quarry init                          Create configuration interactively
  quarry ingest                        Incremental ingestion
  quarry ingest --full                 Rebuild the index from scratch
  quarry search "where is retry logic" Top-10 semantic search
  quarry search -k 5 --path 'src/**' "parse config"
  quarry status --json                 Output as JSON

Getting Started:
  1. Initialize configuration:  quarry init
  2. Ingest your repository:    quarry ingest
  3. Search it:                 quarry search "your question"

Data Storage:
  The index lives in .quarry/index.db inside the repository.

Environment Variables:
  OLLAMA_BASE_URL    Ollama URL (default: http://localhost:11434)
  OPENAI_API_KEY     Required for the openai embedding provider
  NOMIC_API_KEY      Required for the nomic embedding provider

For detailed command help: quarry <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("quarry version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "ingest":
		runIngest(cmdArgs, *configPath)
	case "search":
		runSearch(cmdArgs, *configPath)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "reset":
		runReset(cmdArgs, *configPath)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
