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
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/output"
	"github.com/quarrylabs/quarry/internal/ui"
	"github.com/quarrylabs/quarry/pkg/embed"
	"github.com/quarrylabs/quarry/pkg/extract"
	"github.com/quarrylabs/quarry/pkg/index"
	"github.com/quarrylabs/quarry/pkg/ingest"
)

// runIngest executes the 'ingest' CLI command.
//
// It walks the repository, extracts code units with tree-sitter, embeds the
// changed chunks, and commits the updated index. Incremental by default;
// --full rebuilds everything.
//
// Flags:
//   - --full: rebuild the index from scratch
//   - --embed-workers: number of parallel embedding workers
//   - --debug: enable debug logging
//   - --json: print the run report as JSON
//   - --quiet: suppress progress output
//   - --no-color: disable colored output
//   - --metrics-addr: HTTP address for Prometheus metrics (empty to disable)
func runIngest(args []string, configPath string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	full := fs.Bool("full", false, "Rebuild the index from scratch")
	embedWorkers := fs.Int("embed-workers", 0, "Number of parallel embedding workers (default from config)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	jsonOutput := fs.Bool("json", false, "Print the run report as JSON")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry ingest [options]

Ingests the current repository using configuration from .quarry/project.yaml.
The index is stored in .quarry/index.db.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	globals := GlobalFlags{JSON: *jsonOutput, Quiet: *quiet || *jsonOutput, NoColor: *noColor}
	ui.InitColors(globals.NoColor)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		qerrors.FatalError(qerrors.NewConfigError(
			"Cannot load quarry configuration", err.Error(),
			"Run 'quarry init' to create one", err), globals.JSON)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		qerrors.FatalError(qerrors.NewInternalError(
			"Cannot resolve current directory", err.Error(), "", err), globals.JSON)
	}

	provider, err := embed.NewProvider(cfg.Embedding, logger)
	if err != nil {
		qerrors.FatalError(qerrors.NewConfigError(
			"Cannot create embedding provider", err.Error(),
			"Check the embedding section of .quarry/project.yaml", err), globals.JSON)
	}

	store, err := index.OpenStore(IndexPath(cwd))
	if err != nil {
		qerrors.FatalError(qerrors.NewIndexError(
			"Cannot open the quarry index", err.Error(),
			"Close other quarry instances or run: quarry reset --yes", err), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	ingestCfg := ingest.Config{
		RepoRoot:       cwd,
		IgnoreGlobs:    cfg.Indexing.Ignore,
		MaxFileSize:    cfg.Indexing.MaxFileSize,
		MaxTokens:      cfg.Chunking.MaxTokens,
		MinTokens:      cfg.Chunking.MinTokens,
		ExtractWorkers: cfg.Workers.Extract,
		EmbedWorkers:   cfg.Workers.Embed,
		EmbedBatchSize: cfg.Indexing.BatchSize,
		Full:           *full,
	}
	if *embedWorkers > 0 {
		ingestCfg.EmbedWorkers = *embedWorkers
	}

	pipeline := ingest.NewPipeline(ingestCfg, extract.NewRegistry(logger), provider, store, logger)
	attachProgress(pipeline, NewProgressConfig(globals))

	logger.Info("ingest.starting",
		"project_id", cfg.ProjectID,
		"repo", cwd,
		"provider", cfg.Embedding.Provider,
		"model", provider.ModelID(),
		"full", *full,
	)

	report, err := pipeline.Run(ctx)
	if err != nil {
		qerrors.FatalError(qerrors.NewIndexError(
			"Ingestion failed", err.Error(),
			"Re-run with --debug for details; --full rebuilds from scratch", err), globals.JSON)
	}

	if err := report.WriteFile(ReportPath(cwd)); err != nil {
		logger.Warn("ingest.report.write_error", "err", err)
	}

	if globals.JSON {
		if err := output.JSON(report); err != nil {
			qerrors.FatalError(err, true)
		}
		return
	}
	printReport(report, cwd)
}

// printReport prints the run summary in human-readable form.
func printReport(r *ingest.Report, root string) {
	fmt.Println()
	ui.Header("Ingestion Complete")
	fmt.Printf("%s %s\n", ui.Label("Run ID:"), r.RunID)
	fmt.Printf("%s %s\n", ui.Label("Files scanned:"), ui.CountText(r.FilesScanned))
	fmt.Printf("  added %s, modified %s, deleted %s, unchanged %s\n",
		ui.CountText(r.FilesAdded), ui.CountText(r.FilesModified),
		ui.CountText(r.FilesDeleted), ui.CountText(r.FilesUnchanged))
	fmt.Printf("%s %s indexed, %s deleted\n", ui.Label("Chunks:"),
		ui.CountText(r.ChunksIndexed), ui.CountText(r.ChunksDeleted))
	fmt.Printf("%s %s calls, %s retries\n", ui.Label("Embedding:"),
		ui.CountText(r.EmbedCalls), ui.CountText(r.EmbedRetries))

	if len(r.SkipReasons) > 0 {
		fmt.Println("\nSkipped files:")
		for reason, count := range r.SkipReasons {
			fmt.Printf("  %s: %d\n", reason, count)
		}
	}

	if failed := r.Failed(); len(failed) > 0 {
		fmt.Println()
		ui.Warningf("%d files failed this run:", len(failed))
		for _, f := range failed {
			fmt.Printf("  %s %s: %s\n", ui.DimText(f.Path), f.ErrorKind, f.Error)
		}
	}

	fmt.Println("\nTimings:")
	fmt.Printf("  Scan:    %s\n", r.ScanDuration)
	fmt.Printf("  Extract: %s\n", r.ExtractDuration)
	fmt.Printf("  Embed:   %s\n", r.EmbedDuration)
	fmt.Printf("  Index:   %s\n", r.IndexDuration)
	fmt.Printf("  Total:   %s\n", r.TotalDuration)
	fmt.Println()
	fmt.Printf("Index stored in: %s\n", ui.DimText(IndexPath(root)))

	if r.FilesFailed == 0 {
		ui.Successf("indexed %d chunks from %d files", r.ChunksIndexed, r.FilesAdded+r.FilesModified)
	}
}
