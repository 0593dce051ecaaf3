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

package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/extract"
)

func unit(path, symbol string, kind extract.Kind, start int, source string) extract.Unit {
	return extract.Unit{
		Path:      path,
		Symbol:    symbol,
		Kind:      kind,
		Language:  "python",
		StartByte: start,
		EndByte:   start + len(source),
		StartLine: 1,
		EndLine:   1 + strings.Count(source, "\n"),
		Source:    source,
		Parent:    -1,
	}
}

func TestChunker_SingleUnitVerbatim(t *testing.T) {
	c := NewChunker(0, 0)

	u := unit("a.py", "foo", extract.KindFunction, 0, "def foo():\n    return 1\n")
	chunks := c.Chunk([]extract.Unit{u})
	require.Len(t, chunks, 1)

	got := chunks[0]
	assert.Equal(t, "// File: a.py | Symbol: foo\n"+u.Source, got.Text)
	assert.Equal(t, "foo", got.Meta.Symbol)
	assert.Equal(t, extract.KindFunction, got.Meta.Kind)
	assert.True(t, strings.HasPrefix(got.ID, "chunk:"))
}

func TestChunker_DeterministicIDs(t *testing.T) {
	c := NewChunker(0, 0)

	u := unit("a.py", "foo", extract.KindFunction, 0, "def foo():\n    return 1\n")
	first := c.Chunk([]extract.Unit{u})
	second := c.Chunk([]extract.Unit{u})
	require.Len(t, first, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Hash, second[0].Hash)

	// A body edit must produce a different ID even with the same span.
	edited := u
	edited.Source = "def foo():\n    return 2\n"
	third := c.Chunk([]extract.Unit{edited})
	assert.NotEqual(t, first[0].ID, third[0].ID)
}

func TestChunker_OversizedClassSplitsOnMethods(t *testing.T) {
	// Tight budget forces the class apart at method boundaries.
	c := NewChunker(20, 1)

	header := "class Big:\n    LIMIT = 10\n\n"
	m1 := "    def one(self):\n        return 1\n"
	m2 := "    def two(self):\n        return 2\n"
	classSrc := header + m1 + "\n" + m2

	cls := unit("big.py", "Big", extract.KindClass, 0, classSrc)
	u1 := unit("big.py", "Big.one", extract.KindMethod, len(header), m1)
	u1.Parent = 0
	u1.Scope = "Big"
	u2 := unit("big.py", "Big.two", extract.KindMethod, len(header)+len(m1)+1, m2)
	u2.Parent = 0
	u2.Scope = "Big"

	chunks := c.Chunk([]extract.Unit{cls, u1, u2})
	require.Len(t, chunks, 3)

	assert.Equal(t, "Big", chunks[0].Meta.Symbol)
	assert.Contains(t, chunks[0].Text, "LIMIT = 10")
	assert.NotContains(t, chunks[0].Text, "def one", "header chunk stops before the first method")

	assert.Equal(t, "Big.one", chunks[1].Meta.Symbol)
	assert.Equal(t, "Big", chunks[1].Meta.Scope)
	assert.Equal(t, "Big.two", chunks[2].Meta.Symbol)
}

func TestChunker_LineWindowFallback(t *testing.T) {
	c := NewChunker(10, 1) // 40-byte windows

	var b strings.Builder
	b.WriteString("def gen():\n")
	for i := 0; i < 20; i++ {
		b.WriteString("    x = compute_value_number()\n")
	}
	u := unit("gen.py", "gen", extract.KindFunction, 0, b.String())

	chunks := c.Chunk([]extract.Unit{u})
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Contains(t, ch.Meta.Symbol, "#", "window chunks are numbered")
		assert.LessOrEqual(t, EstimateTokens(ch.Text)-EstimateTokens(headerLine(ch.Meta)), c.MaxTokens+1)
		if i > 0 {
			assert.Greater(t, ch.Meta.StartLine, chunks[i-1].Meta.StartLine)
		}
	}
}

func TestChunker_MergesSmallSiblings(t *testing.T) {
	c := NewChunker(100, 20)

	u1 := unit("c.py", "a", extract.KindFunction, 0, "def a():\n    return 1\n")
	u2 := unit("c.py", "b", extract.KindFunction, u1.EndByte+1, "def b():\n    return 2\n")

	chunks := c.Chunk([]extract.Unit{u1, u2})
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "def a")
	assert.Contains(t, chunks[0].Text, "def b")
	assert.Equal(t, "a", chunks[0].Meta.Symbol)
}

func TestChunker_NoMergeAcrossScopes(t *testing.T) {
	c := NewChunker(100, 20)

	u1 := unit("d.py", "a", extract.KindFunction, 0, "def a():\n    return 1\n")
	u2 := unit("d.py", "B.m", extract.KindMethod, u1.EndByte+1, "    def m(self):\n        return 2\n")
	u2.Scope = "B"

	chunks := c.Chunk([]extract.Unit{u1, u2})
	assert.Len(t, chunks, 2)
}

func TestChunker_EmptyInput(t *testing.T) {
	c := NewChunker(0, 0)
	assert.Nil(t, c.Chunk(nil))
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty = %d", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("abcd = %d", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("abcde = %d", got)
	}
}

func TestID_Normalization(t *testing.T) {
	h := ContentHash("x")
	if ID("./a/b.py", 0, 10, h) != ID("a/b.py", 0, 10, h) {
		t.Error("leading ./ must not change the ID")
	}
	if ID("a/b.py", 0, 10, h) == ID("a/b.py", 0, 11, h) {
		t.Error("span must change the ID")
	}
	if ID("a/b.py", 0, 10, h) == ID("a/b.py", 0, 10, ContentHash("y")) {
		t.Error("content must change the ID")
	}
}
