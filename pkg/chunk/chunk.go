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

// Package chunk turns extracted code units into embedding-ready chunks.
// Oversized units split along nested-unit boundaries before falling back to
// line windows; undersized sibling units merge to limit index bloat.
package chunk

import (
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/pkg/extract"
)

const (
	// DefaultMaxTokens bounds a chunk at roughly 1600 bytes of source,
	// matching common embedding-model context sweet spots.
	DefaultMaxTokens = 400

	// DefaultMinTokens is the merge threshold for tiny sibling units.
	DefaultMinTokens = 40

	// bytesPerToken is the estimation heuristic: source code averages
	// about four bytes per model token.
	bytesPerToken = 4

	// windowOverlapFraction is how much of a line window repeats in the
	// next window when a unit has no finer boundary to split on.
	windowOverlapFraction = 5
)

// Metadata travels with a chunk into the index and back out of retrieval.
type Metadata struct {
	Path      string       `json:"path"`
	Symbol    string       `json:"symbol"`
	Kind      extract.Kind `json:"kind"`
	Language  string       `json:"language"`
	Scope     string       `json:"scope,omitempty"`
	StartLine int          `json:"start_line"`
	EndLine   int          `json:"end_line"`
}

// Chunk is an embedding-ready text span. ID is deterministic for identical
// (path, span, content), which makes re-ingestion idempotent.
type Chunk struct {
	ID   string
	Text string
	Hash string
	Meta Metadata
}

// Chunker converts a file's unit slice into chunks. Both bounds are in
// estimated tokens; zero values take the defaults.
type Chunker struct {
	MaxTokens int
	MinTokens int
}

// NewChunker creates a chunker with the given token bounds.
func NewChunker(maxTokens, minTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if minTokens <= 0 {
		minTokens = DefaultMinTokens
	}
	if minTokens > maxTokens {
		minTokens = maxTokens
	}
	return &Chunker{MaxTokens: maxTokens, MinTokens: minTokens}
}

// EstimateTokens approximates the model token count of a text.
func EstimateTokens(text string) int {
	return (len(text) + bytesPerToken - 1) / bytesPerToken
}

// piece is a pre-merge chunk candidate. Split windows set partial so the
// merge pass never glues them back together.
type piece struct {
	body    string
	meta    Metadata
	start   int
	end     int
	partial bool
}

// Chunk converts one file's units (in extraction order) into chunks.
// Operating on the whole file at once lets the merge pass see sibling
// adjacency.
func (c *Chunker) Chunk(units []extract.Unit) []Chunk {
	if len(units) == 0 {
		return nil
	}

	children := make(map[int][]int)
	var top []int
	for i := range units {
		if p := units[i].Parent; p >= 0 {
			children[p] = append(children[p], i)
		} else {
			top = append(top, i)
		}
	}

	var pieces []piece
	for _, i := range top {
		u := units[i]
		if EstimateTokens(u.Source) <= c.MaxTokens {
			pieces = append(pieces, pieceFromUnit(u))
			continue
		}
		if kids := children[i]; len(kids) > 0 {
			pieces = append(pieces, c.splitContainer(units, i, kids)...)
			continue
		}
		pieces = append(pieces, c.splitWindows(u)...)
	}

	pieces = c.mergeSmall(pieces)

	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		text := headerLine(p.meta) + "\n" + p.body
		hash := ContentHash(text)
		chunks = append(chunks, Chunk{
			ID:   ID(p.meta.Path, p.start, p.end, hash),
			Text: text,
			Hash: hash,
			Meta: p.meta,
		})
	}
	return chunks
}

// headerLine is the stable metadata prefix embedded with every chunk so the
// vector captures identity, not just body text.
func headerLine(m Metadata) string {
	return fmt.Sprintf("// File: %s | Symbol: %s", m.Path, m.Symbol)
}

func pieceFromUnit(u extract.Unit) piece {
	return piece{
		body: u.Source,
		meta: Metadata{
			Path:      u.Path,
			Symbol:    u.Symbol,
			Kind:      u.Kind,
			Language:  u.Language,
			Scope:     u.Scope,
			StartLine: u.StartLine,
			EndLine:   u.EndLine,
		},
		start: u.StartByte,
		end:   u.EndByte,
	}
}

// splitContainer breaks an oversized container unit (a class, typically)
// into a header piece covering everything before the first nested unit,
// plus one piece per nested unit. Oversized nested units fall through to
// line windows.
func (c *Chunker) splitContainer(units []extract.Unit, parent int, kids []int) []piece {
	u := units[parent]
	var pieces []piece

	headEnd := units[kids[0]].StartByte - u.StartByte
	if headEnd > len(u.Source) {
		headEnd = len(u.Source)
	}
	if headEnd > 0 {
		head := strings.TrimRight(u.Source[:headEnd], " \t\n")
		if head != "" {
			hp := pieceFromUnit(u)
			hp.body = head
			hp.end = u.StartByte + headEnd
			hp.meta.EndLine = u.StartLine + strings.Count(head, "\n")
			pieces = append(pieces, hp)
		}
	}

	for _, k := range kids {
		kid := units[k]
		if EstimateTokens(kid.Source) <= c.MaxTokens {
			pieces = append(pieces, pieceFromUnit(kid))
			continue
		}
		pieces = append(pieces, c.splitWindows(kid)...)
	}
	return pieces
}

// splitWindows is the last-resort split for units with no nested boundary:
// fixed-size line windows with a leading overlap carried from the previous
// window so no statement loses all of its context.
func (c *Chunker) splitWindows(u extract.Unit) []piece {
	byteBudget := c.MaxTokens * bytesPerToken
	lines := strings.SplitAfter(u.Source, "\n")

	var pieces []piece
	part := 0
	i := 0
	for i < len(lines) {
		size := 0
		j := i
		for j < len(lines) && (size == 0 || size+len(lines[j]) <= byteBudget) {
			size += len(lines[j])
			j++
		}

		body := strings.TrimRight(strings.Join(lines[i:j], ""), "\n")
		startOff := lineOffset(lines, i)
		endOff := lineOffset(lines, j)

		p := pieceFromUnit(u)
		p.body = body
		p.start = u.StartByte + startOff
		p.end = u.StartByte + endOff
		p.meta.Symbol = fmt.Sprintf("%s#%d", u.Symbol, part)
		p.meta.StartLine = u.StartLine + i
		p.meta.EndLine = u.StartLine + j - 1
		p.partial = true
		pieces = append(pieces, p)
		part++

		if j >= len(lines) {
			break
		}
		// Step back a fraction of the window for overlap, but always
		// advance past the previous window start.
		next := j - (j-i)/windowOverlapFraction
		if next <= i {
			next = j
		}
		i = next
	}
	return pieces
}

// lineOffset sums the byte lengths of lines[:n].
func lineOffset(lines []string, n int) int {
	off := 0
	for i := 0; i < n && i < len(lines); i++ {
		off += len(lines[i])
	}
	return off
}

// mergeSmall coalesces runs of undersized sibling pieces. Pieces merge only
// when they share path and scope, their spans are contiguous in source
// order, and the combined size stays within MaxTokens. Split windows never
// merge.
func (c *Chunker) mergeSmall(pieces []piece) []piece {
	if len(pieces) < 2 {
		return pieces
	}

	out := make([]piece, 0, len(pieces))
	cur := pieces[0]
	for _, next := range pieces[1:] {
		if c.canMerge(cur, next) {
			cur.body = cur.body + "\n\n" + next.body
			cur.end = next.end
			cur.meta.EndLine = next.meta.EndLine
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out
}

func (c *Chunker) canMerge(a, b piece) bool {
	if a.partial || b.partial {
		return false
	}
	if a.meta.Path != b.meta.Path || a.meta.Scope != b.meta.Scope {
		return false
	}
	if b.start < a.end {
		return false
	}
	// Container units overlap their nested units; never fold a class into
	// its neighbor.
	if a.meta.Kind == extract.KindClass || b.meta.Kind == extract.KindClass {
		return false
	}
	if EstimateTokens(a.body) >= c.MinTokens && EstimateTokens(b.body) >= c.MinTokens {
		return false
	}
	return EstimateTokens(a.body)+EstimateTokens(b.body) <= c.MaxTokens
}
