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

// Package retrieve answers natural-language queries against an ingested
// index. A retrieval failure is always an error; an empty result set only
// ever means nothing matched.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/quarrylabs/quarry/pkg/embed"
	"github.com/quarrylabs/quarry/pkg/index"
)

// ErrEmptyQuery reports a blank query string.
var ErrEmptyQuery = errors.New("retrieve: empty query")

// Retriever embeds queries and ranks chunks from the index.
type Retriever struct {
	ix       *index.Index
	provider embed.Provider
	logger   *slog.Logger
}

// New binds a retriever to an index and the embedding provider that built
// it. Returns *index.ModelMismatchError when the provider's model disagrees
// with the index's, before any query runs.
func New(ix *index.Index, provider embed.Provider, logger *slog.Logger) (*Retriever, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m := ix.Model(); m != "" && m != provider.ModelID() {
		return nil, &index.ModelMismatchError{IndexModel: m, GivenModel: provider.ModelID()}
	}
	return &Retriever{ix: ix, provider: provider, logger: logger}, nil
}

// Retrieve returns the top-k chunks for a query, best first. Filters apply
// before truncation to k. Chunks whose symbol exactly matches the query
// text are pinned to the front of the ranking regardless of vector score.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, f index.Filters) ([]index.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	start := time.Now()
	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.ix.Query(vector, k, f)
	if err != nil {
		return nil, err
	}

	results = r.pinSymbolMatches(query, k, f, results)
	r.logger.Debug("retrieve.query.done", "k", k, "results", len(results), "duration_ms", time.Since(start).Milliseconds())
	return results, nil
}

// embedQuery prefers the provider's dedicated query path. Models like
// nomic-embed-text embed queries and documents asymmetrically.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if qe, ok := r.provider.(embed.QueryEmbedder); ok {
		return qe.EmbedQuery(ctx, query)
	}
	return embed.EmbedOne(ctx, r.provider, query)
}

// pinSymbolMatches moves chunks whose symbol equals the query text to the
// front. A query that names a symbol verbatim is an exact lookup and must
// not lose to a semantically-similar chunk from another file.
func (r *Retriever) pinSymbolMatches(query string, k int, f index.Filters, results []index.Result) []index.Result {
	exact := r.ix.LookupSymbol(query)
	if len(exact) == 0 {
		return results
	}

	exactSet := make(map[string]struct{}, len(exact))
	pinned := make([]index.Result, 0, len(exact))
	for _, id := range exact {
		e, ok := r.ix.Get(id)
		if !ok || !f.Match(e) {
			continue
		}
		exactSet[id] = struct{}{}

		// Reuse the ranked score when the chunk already made the cut.
		score := f.MinScore
		for _, res := range results {
			if res.ID == id {
				score = res.Score
				break
			}
		}
		pinned = append(pinned, index.Result{ID: id, Score: score, Entry: e})
	}
	if len(pinned) == 0 {
		return results
	}

	out := pinned
	for _, res := range results {
		if _, ok := exactSet[res.ID]; !ok {
			out = append(out, res)
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}
