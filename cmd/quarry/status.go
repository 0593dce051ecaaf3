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
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/output"
	"github.com/quarrylabs/quarry/internal/ui"
	"github.com/quarrylabs/quarry/pkg/index"
	"github.com/quarrylabs/quarry/pkg/ingest"
)

// StatusResult represents the index status for JSON output.
type StatusResult struct {
	ProjectID   string    `json:"project_id"`
	IndexPath   string    `json:"index_path"`
	Indexed     bool      `json:"indexed"`
	Model       string    `json:"model,omitempty"`
	Files       int       `json:"files"`
	Chunks      int       `json:"chunks"`
	Dimension   int       `json:"dimension,omitempty"`
	LastRunID   string    `json:"last_run_id,omitempty"`
	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	FilesFailed int       `json:"files_failed,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// runStatus executes the 'status' CLI command, displaying index statistics.
//
// Flags:
//   - --json: output results as JSON
func runStatus(args []string, configPath string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry status [options]

Shows the state of the local index.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		qerrors.FatalError(qerrors.NewConfigError(
			"Cannot load quarry configuration", err.Error(),
			"Run 'quarry init' to create one", err), *jsonOutput)
	}

	cwd, err := os.Getwd()
	if err != nil {
		qerrors.FatalError(qerrors.NewInternalError(
			"Cannot resolve current directory", err.Error(), "", err), *jsonOutput)
	}

	result := &StatusResult{
		ProjectID: cfg.ProjectID,
		IndexPath: IndexPath(cwd),
		Timestamp: time.Now(),
	}

	if _, err := os.Stat(result.IndexPath); os.IsNotExist(err) {
		result.Indexed = false
		if *jsonOutput {
			_ = output.JSON(result)
		} else {
			fmt.Printf("Project '%s' not ingested yet.\n", cfg.ProjectID)
			fmt.Println("Run 'quarry ingest' to build the index.")
		}
		os.Exit(0)
	}

	store, err := index.OpenStore(result.IndexPath)
	if err != nil {
		result.Error = fmt.Sprintf("cannot open index: %v", err)
		if *jsonOutput {
			_ = output.JSON(result)
		} else {
			ui.Errorf("cannot open index: %v", err)
		}
		os.Exit(qerrors.ExitIndex)
	}
	defer func() { _ = store.Close() }()

	// Empty expected model skips the mismatch check; status reports
	// whatever model the index was built with.
	ix, snapshot, err := store.Load(context.Background(), "")
	if err != nil {
		result.Error = fmt.Sprintf("cannot load index: %v", err)
		if *jsonOutput {
			_ = output.JSON(result)
		} else {
			ui.Errorf("cannot load index: %v", err)
		}
		os.Exit(qerrors.ExitIndex)
	}

	result.Indexed = ix.Len() > 0
	result.Model = ix.Model()
	result.Files = len(snapshot)
	result.Chunks = ix.Len()
	result.Dimension = ix.Dimension()

	if report, err := ingest.LoadReport(ReportPath(cwd)); err == nil && report != nil {
		result.LastRunID = report.RunID
		result.LastRunAt = report.FinishedAt
		result.FilesFailed = report.FilesFailed
	}

	if *jsonOutput {
		_ = output.JSON(result)
		return
	}
	printStatus(result)
}

func printStatus(r *StatusResult) {
	ui.Header("Quarry Index Status")
	fmt.Printf("%s %s\n", ui.Label("Project ID:"), r.ProjectID)
	fmt.Printf("%s %s\n", ui.Label("Index:"), ui.DimText(r.IndexPath))
	if r.Model != "" {
		fmt.Printf("%s %s (%d dimensions)\n", ui.Label("Model:"), r.Model, r.Dimension)
	}
	fmt.Println()
	fmt.Printf("  Files:  %s\n", ui.CountText(r.Files))
	fmt.Printf("  Chunks: %s\n", ui.CountText(r.Chunks))

	if r.LastRunID != "" {
		fmt.Println()
		fmt.Printf("%s %s", ui.Label("Last run:"), r.LastRunID)
		if !r.LastRunAt.IsZero() {
			fmt.Printf(" (%s)", r.LastRunAt.Format(time.RFC3339))
		}
		fmt.Println()
		if r.FilesFailed > 0 {
			ui.Warningf("%d files failed in the last run", r.FilesFailed)
		}
	}
}
