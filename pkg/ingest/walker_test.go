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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walkPaths(t *testing.T, result *WalkResult) []string {
	t.Helper()
	paths := make([]string, len(result.Files))
	for i, f := range result.Files {
		paths[i] = f.Path
	}
	return paths
}

func TestWalk_SupportedFilesOnly(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"main.go":       "package main\n",
		"lib/util.py":   "def util():\n    pass\n",
		"web/app.tsx":   "export const App = () => null;\n",
		"README.md":     "# readme\n",
		"Makefile":      "all:\n",
		"data/dump.json": "{}\n",
	})

	result, err := Walk(Config{RepoRoot: root}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"lib/util.py", "main.go", "web/app.tsx"}, walkPaths(t, result))
	assert.Equal(t, 3, result.SkipReasons["unsupported_language"])

	for _, f := range result.Files {
		assert.Len(t, f.Hash, 64, "sha256 hex digest")
		assert.NotEmpty(t, f.Language)
	}
}

func TestWalk_IgnoreGlobs(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"src/a.go":               "package a\n",
		"vendor/dep/dep.go":      "package dep\n",
		"node_modules/m/m.js":    "var m;\n",
		"dist/bundle.min.js":     "!function(){}();\n",
		"gen/api.pb.go":          "package gen\n",
		"scripts/setup.py":       "pass\n",
	})

	cfg := Config{RepoRoot: root, IgnoreGlobs: []string{"scripts/**"}}
	result, err := Walk(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/a.go"}, walkPaths(t, result))
}

func TestWalk_HiddenDirectoriesSkipped(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.go":              "package a\n",
		".git/hooks/x.py":   "pass\n",
		".venv/lib/site.py": "pass\n",
	})

	result, err := Walk(Config{RepoRoot: root}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, walkPaths(t, result))
}

func TestWalk_TooLarge(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"small.py": "def f():\n    pass\n",
		"big.py":   "# " + strings.Repeat("x", 4096) + "\n",
	})

	cfg := Config{RepoRoot: root, MaxFileSize: 1024}
	result, err := Walk(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"small.py"}, walkPaths(t, result))
	assert.Equal(t, 1, result.SkipReasons["too_large"])
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := Walk(Config{RepoRoot: filepath.Join(t.TempDir(), "nope")}, nil)
	require.Error(t, err)
}

func TestWalk_HashChangesWithContent(t *testing.T) {
	root := writeRepo(t, map[string]string{"a.py": "def f():\n    return 1\n"})

	first, err := Walk(Config{RepoRoot: root}, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def f():\n    return 2\n"), 0644))
	second, err := Walk(Config{RepoRoot: root}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.Files[0].Hash, second.Files[0].Hash)
}

func TestComputeDelta(t *testing.T) {
	files := []FileInfo{
		{Path: "a.py", Hash: "h1"},
		{Path: "b.py", Hash: "h2-new"},
		{Path: "c.py", Hash: "h3"},
	}
	snapshot := map[string]string{
		"b.py": "h2-old",
		"c.py": "h3",
		"gone.py": "h4",
	}

	d := ComputeDelta(files, snapshot)
	require.Len(t, d.Added, 1)
	assert.Equal(t, "a.py", d.Added[0].Path)
	require.Len(t, d.Modified, 1)
	assert.Equal(t, "b.py", d.Modified[0].Path)
	require.Len(t, d.Unchanged, 1)
	assert.Equal(t, "c.py", d.Unchanged[0].Path)
	assert.Equal(t, []string{"gone.py"}, d.Deleted)

	changed := d.Changed()
	assert.Equal(t, "a.py", changed[0].Path)
	assert.Equal(t, "b.py", changed[1].Path)
}

func TestComputeDelta_EmptySnapshot(t *testing.T) {
	files := []FileInfo{{Path: "a.py", Hash: "h1"}}
	d := ComputeDelta(files, nil)
	assert.Len(t, d.Added, 1)
	assert.Empty(t, d.Modified)
	assert.Empty(t, d.Deleted)
	assert.Empty(t, d.Unchanged)
}
