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

package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/chunk"
	"github.com/quarrylabs/quarry/pkg/extract"
)

func entry(id, path, symbol string, kind extract.Kind, vector []float32) Entry {
	return Entry{
		ID:     id,
		Vector: vector,
		Hash:   "hash-" + id,
		Text:   "text " + id,
		Meta: chunk.Metadata{
			Path:      path,
			Symbol:    symbol,
			Kind:      kind,
			Language:  "python",
			StartLine: 1,
			EndLine:   5,
		},
	}
}

func TestIndex_UpsertAndQuery(t *testing.T) {
	ix := New("mock/deterministic", MetricCosine)

	require.NoError(t, ix.Upsert([]Entry{
		entry("chunk:a", "a.py", "foo", extract.KindFunction, []float32{1, 0}),
		entry("chunk:b", "b.py", "bar", extract.KindFunction, []float32{0, 1}),
		entry("chunk:c", "c.py", "baz", extract.KindFunction, []float32{0.7071, 0.7071}),
	}))
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, 2, ix.Dimension())

	results, err := ix.Query([]float32{1, 0}, 2, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "chunk:a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, "chunk:c", results[1].ID)
}

func TestIndex_UpsertReplacesByID(t *testing.T) {
	ix := New("m", MetricCosine)

	require.NoError(t, ix.Upsert([]Entry{entry("chunk:a", "a.py", "foo", extract.KindFunction, []float32{1, 0})}))
	require.NoError(t, ix.Upsert([]Entry{entry("chunk:a", "a.py", "foo", extract.KindFunction, []float32{0, 1})}))

	assert.Equal(t, 1, ix.Len())
	e, ok := ix.Get("chunk:a")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1}, e.Vector)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := New("m", MetricCosine)
	require.NoError(t, ix.Upsert([]Entry{entry("chunk:a", "a.py", "foo", extract.KindFunction, []float32{1, 0})}))

	err := ix.Upsert([]Entry{entry("chunk:b", "b.py", "bar", extract.KindFunction, []float32{1, 0, 0})})
	var dim *DimensionError
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 2, dim.Want)
	assert.Equal(t, 1, ix.Len(), "rejected batch must not be partially applied")

	_, err = ix.Query([]float32{1, 0, 0}, 1, Filters{})
	require.ErrorAs(t, err, &dim)
}

func TestIndex_QueryInvalidK(t *testing.T) {
	ix := New("m", MetricCosine)
	_, err := ix.Query([]float32{1}, 0, Filters{})
	assert.ErrorIs(t, err, ErrInvalidK)
	_, err = ix.Query([]float32{1}, -3, Filters{})
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestIndex_QueryEmpty(t *testing.T) {
	ix := New("m", MetricCosine)
	results, err := ix.Query([]float32{1, 0}, 5, Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_TieBreakByID(t *testing.T) {
	ix := New("m", MetricCosine)
	// Identical vectors: ordering must fall back to chunk ID.
	require.NoError(t, ix.Upsert([]Entry{
		entry("chunk:b", "b.py", "b", extract.KindFunction, []float32{1, 0}),
		entry("chunk:a", "a.py", "a", extract.KindFunction, []float32{1, 0}),
		entry("chunk:c", "c.py", "c", extract.KindFunction, []float32{1, 0}),
	}))

	results, err := ix.Query([]float32{1, 0}, 3, Filters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk:a", "chunk:b", "chunk:c"},
		[]string{results[0].ID, results[1].ID, results[2].ID})
}

func TestIndex_Filters(t *testing.T) {
	ix := New("m", MetricCosine)
	require.NoError(t, ix.Upsert([]Entry{
		entry("chunk:a", "src/api/handler.py", "handle", extract.KindFunction, []float32{1, 0}),
		entry("chunk:b", "src/db/conn.py", "Conn", extract.KindClass, []float32{1, 0}),
		entry("chunk:c", "tests/test_api.py", "test_handle", extract.KindFunction, []float32{0.5, 0.866}),
	}))

	results, err := ix.Query([]float32{1, 0}, 10, Filters{PathGlob: "src/**"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = ix.Query([]float32{1, 0}, 10, Filters{Kinds: []extract.Kind{extract.KindClass}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk:b", results[0].ID)

	results, err = ix.Query([]float32{1, 0}, 10, Filters{MinScore: 0.9})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(0.9))
	}
}

func TestIndex_DeleteIsExact(t *testing.T) {
	ix := New("m", MetricCosine)
	require.NoError(t, ix.Upsert([]Entry{
		entry("chunk:a", "a.py", "foo", extract.KindFunction, []float32{1, 0}),
		entry("chunk:b", "b.py", "bar", extract.KindFunction, []float32{0, 1}),
	}))

	removed := ix.Delete([]string{"chunk:a", "chunk:unknown"})
	assert.Equal(t, 1, removed, "unknown IDs are a no-op")
	assert.Equal(t, []string{"chunk:b"}, ix.IDs())
	assert.Empty(t, ix.IDsForPath("a.py"))
	assert.Empty(t, ix.LookupSymbol("foo"))
}

func TestIndex_LookupSymbol(t *testing.T) {
	ix := New("m", MetricCosine)
	require.NoError(t, ix.Upsert([]Entry{
		entry("chunk:a", "a.py", "total", extract.KindFunction, []float32{1, 0}),
		entry("chunk:b", "b.py", "Order.total", extract.KindMethod, []float32{0, 1}),
		entry("chunk:c", "c.py", "unrelated", extract.KindFunction, []float32{1, 0}),
	}))

	assert.Equal(t, []string{"chunk:a", "chunk:b"}, ix.LookupSymbol("total"))
	assert.Equal(t, []string{"chunk:b"}, ix.LookupSymbol("Order.total"))
	assert.Empty(t, ix.LookupSymbol("missing"))
}

func TestIndex_Rebuild(t *testing.T) {
	ix := New("m", MetricCosine)
	require.NoError(t, ix.Upsert([]Entry{entry("chunk:old", "old.py", "old", extract.KindFunction, []float32{1, 0})}))

	require.NoError(t, ix.Rebuild([]Entry{
		entry("chunk:new", "new.py", "new", extract.KindFunction, []float32{0, 1, 0}),
	}))
	assert.Equal(t, []string{"chunk:new"}, ix.IDs())
	assert.Equal(t, 3, ix.Dimension(), "rebuild may change dimension")
}

func TestIndex_ConcurrentReaders(t *testing.T) {
	ix := New("m", MetricCosine)
	entries := make([]Entry, 100)
	for i := range entries {
		entries[i] = entry(fmt.Sprintf("chunk:%03d", i), fmt.Sprintf("f%d.py", i), fmt.Sprintf("fn%d", i),
			extract.KindFunction, []float32{float32(i), 1})
	}
	require.NoError(t, ix.Upsert(entries))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := ix.Query([]float32{1, 0}, 10, Filters{})
				assert.NoError(t, err)
			}
		}()
	}
	// One writer racing the readers.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = ix.Upsert([]Entry{entry("chunk:writer", "w.py", "w", extract.KindFunction, []float32{1, 1})})
			ix.Delete([]string{"chunk:writer"})
		}
	}()
	wg.Wait()
}
