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

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/embed"
	"github.com/quarrylabs/quarry/pkg/extract"
	"github.com/quarrylabs/quarry/pkg/index"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return root
}

func testConfig(root string) Config {
	return Config{
		RepoRoot: root,
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2.0,
		},
	}
}

func newTestPipeline(t *testing.T, root, dbPath string) (*Pipeline, *embed.MockProvider, *index.Store) {
	t.Helper()
	store, err := index.OpenStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	provider := embed.NewMockProvider(32)
	p := NewPipeline(testConfig(root), extract.NewRegistry(nil), provider, store, nil)
	return p, provider, store
}

func TestPipeline_PartialFailure(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py": "def foo():\n    return 1\n",
		"b.py": "def broken(:\n    pass\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")
	p, _, store := newTestPipeline(t, root, dbPath)

	report, err := p.Run(context.Background())
	require.NoError(t, err, "one bad file must not abort the run")

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 1, report.ChunksIndexed)
	assert.Equal(t, 1, report.FilesFailed)

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b.py", failed[0].Path)
	assert.Equal(t, "ParseError", failed[0].ErrorKind)

	ix, snapshot, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len(), "index contains exactly the foo chunk")
	assert.Contains(t, snapshot, "a.py")
	assert.NotContains(t, snapshot, "b.py", "failed files stay out of the snapshot so the next run retries them")
}

func TestPipeline_IdempotentRerun(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py": "def foo():\n    return 1\n",
		"b.py": "def bar():\n    return 2\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")

	p1, m1, store := newTestPipeline(t, root, dbPath)
	_, err := p1.Run(context.Background())
	require.NoError(t, err)
	require.Positive(t, m1.Calls())

	first, _, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)

	// Fresh provider so the second run's call count starts at zero.
	m2 := embed.NewMockProvider(32)
	p2 := NewPipeline(testConfig(root), extract.NewRegistry(nil), m2, store, nil)
	report, err := p2.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, m2.Calls(), "unchanged repository must not re-embed")
	assert.Equal(t, 2, report.FilesUnchanged)
	assert.Equal(t, 0, report.ChunksIndexed)

	second, _, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)
	assert.Equal(t, first.IDs(), second.IDs(), "re-ingestion preserves chunk IDs")
}

func TestPipeline_ModifiedFileReembedsOnce(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py": "def foo():\n    return 1\n",
		"b.py": "def bar():\n    return 2\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")

	p1, _, store := newTestPipeline(t, root, dbPath)
	_, err := p1.Run(context.Background())
	require.NoError(t, err)

	before, _, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)
	oldFooIDs := before.IDsForPath("a.py")
	require.Len(t, oldFooIDs, 1)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def foo():\n    return 42\n"), 0644))

	m2 := embed.NewMockProvider(32)
	p2 := NewPipeline(testConfig(root), extract.NewRegistry(nil), m2, store, nil)
	report, err := p2.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, m2.Calls(), "only the changed chunk embeds")
	assert.Equal(t, 1, m2.Texts())
	assert.Equal(t, 1, report.FilesModified)

	after, _, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)
	assert.Equal(t, before.Len(), after.Len(), "total chunk count unchanged")

	newFooIDs := after.IDsForPath("a.py")
	require.Len(t, newFooIDs, 1)
	assert.NotEqual(t, oldFooIDs[0], newFooIDs[0], "content change produces a new chunk ID")
	_, ok := after.Get(oldFooIDs[0])
	assert.False(t, ok, "stale chunk ID removed")
}

func TestPipeline_DeletedFileReconciles(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py": "def foo():\n    return 1\n",
		"b.py": "def bar():\n    return 2\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")

	p1, _, store := newTestPipeline(t, root, dbPath)
	_, err := p1.Run(context.Background())
	require.NoError(t, err)

	before, _, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)
	keptIDs := before.IDsForPath("b.py")

	require.NoError(t, os.Remove(filepath.Join(root, "a.py")))

	p2, _, _ := newTestPipeline(t, root, dbPath)
	report, err := p2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesDeleted)

	after, snapshot, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)
	assert.Empty(t, after.IDsForPath("a.py"), "deleted file's chunks removed")
	assert.Equal(t, keptIDs, after.IDsForPath("b.py"), "other files untouched")
	assert.NotContains(t, snapshot, "a.py")
}

func TestPipeline_TransientEmbedFailureRetries(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py": "def foo():\n    return 1\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")
	p, provider, _ := newTestPipeline(t, root, dbPath)

	provider.Fail = &embed.BackendError{Provider: "mock", Status: 503, Message: "unavailable", Transient: true}
	provider.FailN = 1

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.FilesFailed)
	assert.Equal(t, 1, report.ChunksIndexed)
	assert.Positive(t, report.EmbedRetries)
}

func TestPipeline_PersistentEmbedFailureMarksFile(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py": "def foo():\n    return 1\n",
		"b.py": "def bar():\n    return 2\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")
	p, provider, store := newTestPipeline(t, root, dbPath)

	// Non-transient failures burn no retries and fail both files' batches.
	provider.Fail = &embed.BackendError{Provider: "mock", Status: 400, Message: "bad model", Transient: false}

	report, err := p.Run(context.Background())
	require.NoError(t, err, "embedding failures are per-file, not run-fatal")
	assert.Equal(t, 2, report.FilesFailed)

	ix, _, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
}

func TestPipeline_ModelMismatchFailsFast(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py": "def foo():\n    return 1\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")

	p1, _, store := newTestPipeline(t, root, dbPath)
	_, err := p1.Run(context.Background())
	require.NoError(t, err)

	other := embed.NewOllamaProvider("http://localhost:1", "nomic-embed-text", nil)
	p2 := NewPipeline(testConfig(root), extract.NewRegistry(nil), other, store, nil)
	_, err = p2.Run(context.Background())

	var mismatch *index.ModelMismatchError
	require.ErrorAs(t, err, &mismatch)

	// --full rebuilds under the new model instead.
	cfg := testConfig(root)
	cfg.Full = true
	provider := embed.NewMockProvider(16)
	p3 := NewPipeline(cfg, extract.NewRegistry(nil), provider, store, nil)
	_, err = p3.Run(context.Background())
	require.NoError(t, err)
}

func TestPipeline_CancelledContext(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.py": "def foo():\n    return 1\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")
	p, _, store := newTestPipeline(t, root, dbPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx)
	require.Error(t, err)

	// Nothing committed: the store still loads as empty.
	ix, snapshot, err := store.Load(context.Background(), "mock/deterministic")
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, snapshot)
}

func TestPipeline_IgnoresVendoredPaths(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"src/main.py":            "def main():\n    pass\n",
		"vendor/lib/dep.py":      "def dep():\n    pass\n",
		"node_modules/x/i.js":    "function f() {}\n",
		"__pycache__/main.pyc.py": "garbage\n",
	})
	dbPath := filepath.Join(t.TempDir(), "index.db")
	p, _, _ := newTestPipeline(t, root, dbPath)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesScanned)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "src/main.py", report.Files[0].Path)
}
