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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"log/slog"

	flag "github.com/spf13/pflag"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/output"
	"github.com/quarrylabs/quarry/internal/ui"
	"github.com/quarrylabs/quarry/pkg/embed"
	"github.com/quarrylabs/quarry/pkg/extract"
	"github.com/quarrylabs/quarry/pkg/index"
	"github.com/quarrylabs/quarry/pkg/retrieve"
)

// SearchHit is one search result for JSON output.
type SearchHit struct {
	ChunkID  string  `json:"chunk_id"`
	Score    float32 `json:"score"`
	Path     string  `json:"path"`
	Symbol   string  `json:"symbol"`
	Kind     string  `json:"kind"`
	Language string  `json:"language"`
	Text     string  `json:"text,omitempty"`
}

// SearchResult is the search response for JSON output.
type SearchResult struct {
	Query     string      `json:"query"`
	K         int         `json:"k"`
	Hits      []SearchHit `json:"hits"`
	Timestamp time.Time   `json:"timestamp"`
}

// runSearch executes the 'search' CLI command.
//
// Flags:
//   - -k: number of results (default: 10)
//   - --path: glob filter on file paths (e.g. 'src/**')
//   - --kind: comma-separated kind filter (function,method,class,module)
//   - --min-score: drop results scoring below the threshold
//   - --json: output results as JSON
//   - --text: include chunk text in the output
//
// Examples:
//
//	quarry search "where is the retry logic"
//	quarry search -k 5 --path 'pkg/**' --kind function "parse config"
func runSearch(args []string, configPath string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	k := fs.IntP("k", "k", 10, "Number of results")
	pathGlob := fs.String("path", "", "Glob filter on file paths (e.g. 'src/**')")
	kinds := fs.String("kind", "", "Comma-separated kind filter (function,method,class,module)")
	minScore := fs.Float64("min-score", 0, "Drop results scoring below this threshold")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	showText := fs.Bool("text", false, "Include chunk text in the output")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry search [options] <query>

Searches the index with a natural-language query.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	ui.InitColors(*noColor)

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		qerrors.FatalError(qerrors.NewInputError(
			"No query given", "search needs a query string",
			"Try: quarry search \"where is the retry logic\""), *jsonOutput)
	}
	if *k <= 0 {
		qerrors.FatalError(qerrors.NewInputError(
			"Invalid value for -k", "k must be a positive integer",
			"Try: quarry search -k 10 \"your query\""), *jsonOutput)
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
	if _, err := os.Stat(IndexPath(cwd)); os.IsNotExist(err) {
		qerrors.FatalError(qerrors.NewNotFoundError(
			"No index found", "this repository has not been ingested yet",
			"Run 'quarry ingest' first"), *jsonOutput)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	provider, err := embed.NewProvider(cfg.Embedding, logger)
	if err != nil {
		qerrors.FatalError(qerrors.NewConfigError(
			"Cannot create embedding provider", err.Error(),
			"Check the embedding section of .quarry/project.yaml", err), *jsonOutput)
	}

	store, err := index.OpenStore(IndexPath(cwd))
	if err != nil {
		qerrors.FatalError(qerrors.NewIndexError(
			"Cannot open the quarry index", err.Error(),
			"Close other quarry instances or run: quarry reset --yes", err), *jsonOutput)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	ix, _, err := store.Load(ctx, provider.ModelID())
	if err != nil {
		var mismatch *index.ModelMismatchError
		if errors.As(err, &mismatch) {
			qerrors.FatalError(qerrors.NewIndexError(
				"Index was built with a different embedding model",
				fmt.Sprintf("index has %s, configuration selects %s", mismatch.IndexModel, mismatch.GivenModel),
				"Run 'quarry ingest --full' to rebuild with the new model", err), *jsonOutput)
		}
		qerrors.FatalError(qerrors.NewIndexError(
			"Cannot load the quarry index", err.Error(), "", err), *jsonOutput)
	}

	retriever, err := retrieve.New(ix, provider, logger)
	if err != nil {
		qerrors.FatalError(qerrors.NewIndexError(
			"Cannot create retriever", err.Error(), "", err), *jsonOutput)
	}

	filters := index.Filters{
		PathGlob: *pathGlob,
		Kinds:    parseKinds(*kinds),
		MinScore: float32(*minScore),
	}

	results, err := retriever.Retrieve(ctx, query, *k, filters)
	if err != nil {
		qerrors.FatalError(qerrors.NewNetworkError(
			"Search failed", err.Error(),
			"Check that the embedding backend is reachable", err), *jsonOutput)
	}

	if *jsonOutput {
		out := SearchResult{Query: query, K: *k, Hits: make([]SearchHit, 0, len(results)), Timestamp: time.Now()}
		for _, r := range results {
			hit := SearchHit{
				ChunkID:  r.ID,
				Score:    r.Score,
				Path:     r.Entry.Meta.Path,
				Symbol:   r.Entry.Meta.Symbol,
				Kind:     string(r.Entry.Meta.Kind),
				Language: r.Entry.Meta.Language,
			}
			if *showText {
				hit.Text = r.Entry.Text
			}
			out.Hits = append(out.Hits, hit)
		}
		if err := output.JSON(out); err != nil {
			qerrors.FatalError(err, true)
		}
		return
	}

	printSearchResults(query, results, *showText)
}

// parseKinds parses the --kind flag into the filter list. Unknown names
// are passed through; the filter simply matches nothing for them.
func parseKinds(s string) []extract.Kind {
	if s == "" {
		return nil
	}
	var kinds []extract.Kind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			kinds = append(kinds, extract.Kind(part))
		}
	}
	return kinds
}

func printSearchResults(query string, results []index.Result, showText bool) {
	if len(results) == 0 {
		fmt.Printf("No results for %q.\n", query)
		return
	}

	for i, r := range results {
		fmt.Printf("%2d. %s %s %s\n", i+1,
			ui.Label(r.Entry.Meta.Symbol),
			ui.DimText(fmt.Sprintf("%s:%d", r.Entry.Meta.Path, r.Entry.Meta.StartLine)),
			fmt.Sprintf("(%.3f)", r.Score))
		if showText {
			for _, line := range strings.Split(r.Entry.Text, "\n") {
				fmt.Printf("      %s\n", line)
			}
			fmt.Println()
		}
	}
}
