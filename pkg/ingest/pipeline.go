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

// Package ingest orchestrates the write path: walk the repository, diff it
// against the previous snapshot, push changed files through
// extract → chunk → embed → index, and reconcile deletions. A run is a
// batch with partial-failure semantics; one broken file never blocks the
// rest.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/pkg/chunk"
	"github.com/quarrylabs/quarry/pkg/embed"
	"github.com/quarrylabs/quarry/pkg/extract"
	"github.com/quarrylabs/quarry/pkg/index"
)

// Pipeline drives one repository through ingestion into a persistent index.
type Pipeline struct {
	cfg      Config
	logger   *slog.Logger
	registry *extract.Registry
	chunker  *chunk.Chunker
	provider embed.Provider
	store    *index.Store

	// Progress, when set, receives per-phase completion updates. The CLI
	// hangs a progress bar on it.
	Progress func(state State, done, total int)
}

// NewPipeline assembles a pipeline from its components.
func NewPipeline(cfg Config, registry *extract.Registry, provider embed.Provider, store *index.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		chunker:  chunk.NewChunker(cfg.MaxTokens, cfg.MinTokens),
		provider: provider,
		store:    store,
	}
}

// fileWork carries one changed file through the phases.
type fileWork struct {
	file       FileInfo
	units      int
	chunks     []chunk.Chunk
	entries    []index.Entry
	failed     bool
	errKind    string
	err        error
	embedCalls int
	retries    int
}

// Run executes one ingestion run and commits the resulting index and
// snapshot atomically. Per-file failures are recorded in the report; only
// infrastructure failures (store I/O, cancellation, model mismatch) return
// an error.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := NewReport()
	start := time.Now()
	p.logger.Info("ingest.run.start", "run_id", report.RunID, "repo", p.cfg.RepoRoot, "model", p.provider.ModelID(), "full", p.cfg.Full)

	// Scanning
	scanStart := time.Now()
	walked, err := Walk(p.cfg, p.logger)
	if err != nil {
		return report, err
	}
	report.ScanDuration = time.Since(scanStart)
	report.FilesScanned = len(walked.Files)
	report.SkipReasons = walked.SkipReasons

	ix, snapshot, err := p.loadState(ctx)
	if err != nil {
		return report, err
	}

	delta := ComputeDelta(walked.Files, snapshot)
	report.FilesAdded = len(delta.Added)
	report.FilesModified = len(delta.Modified)
	report.FilesDeleted = len(delta.Deleted)
	report.FilesUnchanged = len(delta.Unchanged)
	recordDelta(len(delta.Added), len(delta.Modified), len(delta.Deleted), len(delta.Unchanged))
	p.logger.Info("ingest.run.delta", "run_id", report.RunID,
		"added", len(delta.Added), "modified", len(delta.Modified),
		"deleted", len(delta.Deleted), "unchanged", len(delta.Unchanged))

	for _, f := range delta.Unchanged {
		report.addOutcome(FileOutcome{Path: f.Path, Status: FileUnchanged})
	}

	// Extracting
	report.State = StateExtracting
	extractStart := time.Now()
	work := p.extractFiles(ctx, delta.Changed())
	report.ExtractDuration = time.Since(extractStart)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Embedding
	report.State = StateEmbedding
	embedStart := time.Now()
	p.embedFiles(ctx, work)
	report.EmbedDuration = time.Since(embedStart)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Indexing + Reconciling
	indexStart := time.Now()
	report.State = StateIndexing
	newSnapshot := cloneSnapshot(snapshot)
	for i, w := range work {
		// Cancellation point between files: everything already applied to
		// the in-memory index simply never commits.
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if w.failed {
			p.recordFailure(report, w)
			// A failed file keeps its previous snapshot hash (or none), so
			// the next run classifies it as changed and retries.
			continue
		}

		newIDs := make(map[string]struct{}, len(w.entries))
		for _, e := range w.entries {
			newIDs[e.ID] = struct{}{}
		}
		var stale []string
		for _, id := range ix.IDsForPath(w.file.Path) {
			if _, ok := newIDs[id]; !ok {
				stale = append(stale, id)
			}
		}
		if len(stale) > 0 {
			report.ChunksDeleted += ix.Delete(stale)
		}
		if err := ix.Upsert(w.entries); err != nil {
			return report, fmt.Errorf("index %s: %w", w.file.Path, err)
		}
		report.ChunksIndexed += len(w.entries)
		report.UnitsExtracted += w.units
		report.EmbedCalls += w.embedCalls
		report.EmbedRetries += w.retries
		recordChunksIndexed(len(w.entries))
		newSnapshot[w.file.Path] = w.file.Hash
		report.addOutcome(FileOutcome{Path: w.file.Path, Status: FileOK, Chunks: len(w.entries)})
		p.progress(StateIndexing, i+1, len(work))
	}

	report.State = StateReconciling
	for _, path := range delta.Deleted {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ids := ix.IDsForPath(path)
		removed := ix.Delete(ids)
		report.ChunksDeleted += removed
		recordChunksDeleted(removed)
		delete(newSnapshot, path)
		report.addOutcome(FileOutcome{Path: path, Status: FileDeleted, Chunks: removed})
	}
	report.IndexDuration = time.Since(indexStart)

	// Commit: entries and snapshot land in one transaction, so the
	// previous consistent state survives any crash before this point.
	if err := p.store.Save(ctx, ix, newSnapshot); err != nil {
		return report, fmt.Errorf("commit index: %w", err)
	}

	report.State = StateDone
	report.FinishedAt = time.Now()
	report.TotalDuration = time.Since(start)
	observeDurations(report)
	p.logger.Info("ingest.run.complete", "run_id", report.RunID,
		"chunks_indexed", report.ChunksIndexed, "chunks_deleted", report.ChunksDeleted,
		"files_failed", report.FilesFailed, "embed_calls", report.EmbedCalls,
		"duration_ms", report.TotalDuration.Milliseconds())
	return report, nil
}

// loadState loads the persisted index and snapshot, or fresh state when a
// full rebuild was requested.
func (p *Pipeline) loadState(ctx context.Context) (*index.Index, map[string]string, error) {
	if p.cfg.Full {
		return index.New(p.provider.ModelID(), index.MetricCosine), map[string]string{}, nil
	}
	ix, snapshot, err := p.store.Load(ctx, p.provider.ModelID())
	if err != nil {
		var mismatch *index.ModelMismatchError
		if errors.As(err, &mismatch) {
			return nil, nil, fmt.Errorf("%w (run with --full to rebuild with the new model)", err)
		}
		return nil, nil, err
	}
	return ix, snapshot, nil
}

// extractFiles parses and chunks changed files in parallel. Per-file parse
// failures are recorded on the returned work items, never escalated.
func (p *Pipeline) extractFiles(ctx context.Context, files []FileInfo) []*fileWork {
	work := make([]*fileWork, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ExtractWorkers)
	var completed int64
	var mu sync.Mutex

	for i, f := range files {
		i, f := i, f
		work[i] = &fileWork{file: f}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w := work[i]
			src, err := os.ReadFile(f.AbsPath)
			if err != nil {
				w.failed, w.errKind, w.err = true, "ReadError", err
				return nil
			}
			units, err := p.registry.Extract(f.Path, src)
			if err != nil {
				w.failed, w.errKind, w.err = true, errKind(err), err
				p.logger.Warn("ingest.extract.error", "path", f.Path, "kind", w.errKind, "err", err)
				return nil
			}
			w.units = len(units)
			w.chunks = p.chunker.Chunk(units)
			mu.Lock()
			completed++
			p.progress(StateExtracting, int(completed), len(files))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return work
}

// embedFiles embeds every extracted file's chunks, batching provider calls
// and retrying transient failures. A file whose batches cannot all embed
// is marked failed for this run; its previously indexed chunks stay put.
func (p *Pipeline) embedFiles(ctx context.Context, work []*fileWork) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedWorkers)
	var completed int64
	var mu sync.Mutex

	for _, w := range work {
		w := w
		if w.failed || len(w.chunks) == 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, calls, retries, err := p.embedFile(gctx, w.chunks)
			w.embedCalls, w.retries = calls, retries
			if err != nil {
				w.failed, w.errKind, w.err = true, "EmbedError", err
				p.logger.Warn("ingest.embed.error", "path", w.file.Path, "chunks", len(w.chunks), "err", err)
				return nil
			}
			w.entries = entries
			mu.Lock()
			completed++
			p.progress(StateEmbedding, int(completed), len(work))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) embedFile(ctx context.Context, chunks []chunk.Chunk) ([]index.Entry, int, int, error) {
	entries := make([]index.Entry, 0, len(chunks))
	calls, retries := 0, 0

	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vecs, r, err := embedWithRetry(ctx, p.provider, texts, p.cfg, p.logger)
		calls += 1 + r
		retries += r
		if err != nil {
			return nil, calls, retries, err
		}
		if len(vecs) != len(batch) {
			return nil, calls, retries, fmt.Errorf("provider returned %d vectors for %d chunks", len(vecs), len(batch))
		}

		for i, c := range batch {
			entries = append(entries, index.Entry{
				ID:     c.ID,
				Vector: vecs[i],
				Hash:   c.Hash,
				Text:   c.Text,
				Meta:   c.Meta,
			})
		}
	}
	return entries, calls, retries, nil
}

func (p *Pipeline) recordFailure(report *Report, w *fileWork) {
	recordFileFailed()
	report.addOutcome(FileOutcome{
		Path:      w.file.Path,
		Status:    FileFailed,
		ErrorKind: w.errKind,
		Error:     w.err.Error(),
	})
	if w.embedCalls > 0 {
		report.EmbedCalls += w.embedCalls
		report.EmbedRetries += w.retries
	}
}

func (p *Pipeline) progress(state State, done, total int) {
	if p.Progress != nil {
		p.Progress(state, done, total)
	}
}

// errKind names an extraction error class for the run report.
func errKind(err error) string {
	var parseErr *extract.ParseError
	if errors.As(err, &parseErr) {
		return "ParseError"
	}
	var unsupported *extract.UnsupportedLanguageError
	if errors.As(err, &unsupported) {
		return "UnsupportedLanguage"
	}
	var backend *embed.BackendError
	if errors.As(err, &backend) {
		return "EmbedError"
	}
	return "Error"
}

func cloneSnapshot(snapshot map[string]string) map[string]string {
	out := make(map[string]string, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}
	return out
}
