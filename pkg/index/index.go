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

// Package index stores chunk vectors and answers nearest-neighbor queries.
// The search is exact brute-force over normalized vectors, which stays well
// under query budgets for repository-scale corpora and keeps ranking
// deterministic. Writes serialize behind a single lock; reads run in
// parallel with each other.
package index

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/quarrylabs/quarry/internal/globmatch"
	"github.com/quarrylabs/quarry/pkg/chunk"
	"github.com/quarrylabs/quarry/pkg/extract"
)

// Metric selects the similarity function.
type Metric string

const (
	// MetricCosine is cosine similarity. With unit-length vectors it is
	// computed as a dot product.
	MetricCosine Metric = "cosine"

	// MetricDot is the raw inner product.
	MetricDot Metric = "dot"
)

// ErrInvalidK reports a query with a non-positive k.
var ErrInvalidK = errors.New("index: k must be positive")

// DimensionError reports a vector whose width disagrees with the index.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("index: dimension mismatch: index has %d, vector has %d", e.Want, e.Got)
}

// ModelMismatchError reports an attempt to mix embeddings from different
// models in one index. Mixing silently degrades ranking, so it fails fast.
type ModelMismatchError struct {
	IndexModel string
	GivenModel string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("index: model mismatch: index built with %q, got %q", e.IndexModel, e.GivenModel)
}

// Entry is one indexed chunk: vector, content hash for reconciliation, and
// the chunk text plus metadata retrieval hands back to callers.
type Entry struct {
	ID     string
	Vector []float32
	Hash   string
	Text   string
	Meta   chunk.Metadata
}

// Filters narrows a query before truncation to k.
type Filters struct {
	// PathGlob keeps only chunks whose file path matches the glob.
	PathGlob string

	// Kinds keeps only chunks of the listed kinds.
	Kinds []extract.Kind

	// MinScore drops results scoring below the threshold.
	MinScore float32
}

// Result is one ranked query hit.
type Result struct {
	ID    string
	Score float32
	Entry Entry
}

// Index is an in-memory vector index versioned by embedding model.
type Index struct {
	mu       sync.RWMutex
	metric   Metric
	model    string
	dim      int
	entries  map[string]Entry
	byPath   map[string][]string
	bySymbol map[string][]string
}

// New creates an empty index bound to an embedding model identifier.
func New(model string, metric Metric) *Index {
	if metric == "" {
		metric = MetricCosine
	}
	return &Index{
		metric:   metric,
		model:    model,
		entries:  make(map[string]Entry),
		byPath:   make(map[string][]string),
		bySymbol: make(map[string][]string),
	}
}

// Model returns the embedding model identifier the index was built with.
func (ix *Index) Model() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.model
}

// Metric returns the similarity metric.
func (ix *Index) Metric() Metric { return ix.metric }

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dimension returns the vector width, 0 while the index is empty.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Upsert inserts or replaces entries by chunk ID. The first entry ever
// written fixes the index dimension; later disagreements are rejected
// before any entry of the batch is applied.
func (ix *Index) Upsert(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim := ix.dim
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("index: entry %s has no vector", e.ID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		} else if len(e.Vector) != dim {
			return &DimensionError{Want: dim, Got: len(e.Vector)}
		}
	}
	ix.dim = dim

	for _, e := range entries {
		if old, ok := ix.entries[e.ID]; ok {
			ix.dropFromLookups(old)
		}
		ix.entries[e.ID] = e
		ix.byPath[e.Meta.Path] = insertSorted(ix.byPath[e.Meta.Path], e.ID)
		if sym := baseSymbol(e.Meta.Symbol); sym != "" {
			ix.bySymbol[sym] = insertSorted(ix.bySymbol[sym], e.ID)
		}
	}
	return nil
}

// Delete removes entries by ID, ignoring unknown IDs. Returns how many
// entries were actually removed.
func (ix *Index) Delete(ids []string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed := 0
	for _, id := range ids {
		e, ok := ix.entries[id]
		if !ok {
			continue
		}
		ix.dropFromLookups(e)
		delete(ix.entries, id)
		removed++
	}
	if len(ix.entries) == 0 {
		ix.dim = 0
	}
	return removed
}

// Rebuild atomically replaces the full index content.
func (ix *Index) Rebuild(entries []Entry) error {
	fresh := New(ix.model, ix.metric)
	if err := fresh.Upsert(entries); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = fresh.entries
	ix.byPath = fresh.byPath
	ix.bySymbol = fresh.bySymbol
	ix.dim = fresh.dim
	return nil
}

// Query returns the top-k entries by similarity, descending, with ties
// broken by chunk ID. Filters apply before truncation. An empty index
// returns an empty result set, not an error.
func (ix *Index) Query(vector []float32, k int, f Filters) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return []Result{}, nil
	}
	if len(vector) != ix.dim {
		return nil, &DimensionError{Want: ix.dim, Got: len(vector)}
	}

	results := make([]Result, 0, len(ix.entries))
	for _, e := range ix.entries {
		if !f.Match(e) {
			continue
		}
		score := dot(vector, e.Vector)
		if f.MinScore != 0 && score < f.MinScore {
			continue
		}
		results = append(results, Result{ID: e.ID, Score: score, Entry: e})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Get returns an entry by chunk ID.
func (ix *Index) Get(id string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[id]
	return e, ok
}

// IDs returns all chunk IDs, sorted.
func (ix *Index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := make([]string, 0, len(ix.entries))
	for id := range ix.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IDsForPath returns the chunk IDs of one file, sorted. Reconciliation uses
// it to find stale IDs when a file's chunk set shrinks.
func (ix *Index) IDsForPath(path string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := ix.byPath[path]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// LookupSymbol returns the chunk IDs whose symbol matches name exactly.
// The match covers both the bare name ("foo") and qualified method names
// ("Order.foo" matches a lookup for "foo" or "Order.foo").
func (ix *Index) LookupSymbol(name string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, id := range ix.bySymbol[name] {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for id, e := range ix.entries {
		if e.Meta.Symbol != name {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Entries returns a snapshot of all entries, sorted by ID. Persistence
// iterates this rather than holding the lock across I/O.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (ix *Index) dropFromLookups(e Entry) {
	ix.byPath[e.Meta.Path] = removeSorted(ix.byPath[e.Meta.Path], e.ID)
	if len(ix.byPath[e.Meta.Path]) == 0 {
		delete(ix.byPath, e.Meta.Path)
	}
	if sym := baseSymbol(e.Meta.Symbol); sym != "" {
		ix.bySymbol[sym] = removeSorted(ix.bySymbol[sym], e.ID)
		if len(ix.bySymbol[sym]) == 0 {
			delete(ix.bySymbol, sym)
		}
	}
}

// Match reports whether an entry passes the path and kind filters.
// MinScore is applied against the query score, not here.
func (f Filters) Match(e Entry) bool {
	if f.PathGlob != "" && !globmatch.Match(e.Meta.Path, f.PathGlob) {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if e.Meta.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// baseSymbol strips the qualifier from a method symbol and window suffixes
// from split chunks, so "Order.total" is findable as "total" and
// "big_func#2" never shadows "big_func".
func baseSymbol(symbol string) string {
	if i := strings.IndexByte(symbol, '#'); i >= 0 {
		symbol = symbol[:i]
	}
	if i := strings.LastIndexByte(symbol, '.'); i >= 0 {
		symbol = symbol[i+1:]
	}
	return symbol
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}
