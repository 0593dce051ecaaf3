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

package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// parseTree parses src with the given grammar and rejects files whose tree
// contains syntax errors. Tree-sitter itself is error-tolerant; the
// extraction contract is not, so a broken file becomes a *ParseError and
// the run moves on to the next file.
func parseTree(lang *sitter.Language, path string, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	root := tree.RootNode()
	if root.HasError() {
		n := countSyntaxErrors(root)
		tree.Close()
		return nil, &ParseError{Path: path, Err: fmt.Errorf("%d syntax error(s)", n)}
	}

	return tree, nil
}

// countSyntaxErrors counts ERROR and MISSING nodes in a subtree.
func countSyntaxErrors(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	if node.IsError() || node.IsMissing() {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countSyntaxErrors(node.Child(i))
	}
	return count
}

// nodeText slices the source text covered by a node.
func nodeText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return string(src[node.StartByte():node.EndByte()])
}

// unitFromNode builds a Unit from an AST node's span.
func unitFromNode(node *sitter.Node, path, language, symbol string, kind Kind, src []byte) Unit {
	return Unit{
		Path:      path,
		Symbol:    symbol,
		Kind:      kind,
		Language:  language,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Source:    nodeText(node, src),
		Parent:    -1,
	}
}

// moduleUnit builds the file-level preamble unit: everything from the start
// of the file up to (not including) the first declaration. Returns false
// when the preamble is blank.
func moduleUnit(path, language, symbol string, src []byte, firstDeclByte int) (Unit, bool) {
	if firstDeclByte <= 0 {
		firstDeclByte = len(src)
	}
	if firstDeclByte > len(src) {
		firstDeclByte = len(src)
	}
	header := src[:firstDeclByte]
	if strings.TrimSpace(string(header)) == "" {
		return Unit{}, false
	}
	return Unit{
		Path:      path,
		Symbol:    symbol,
		Kind:      KindModule,
		Language:  language,
		StartByte: 0,
		EndByte:   firstDeclByte,
		StartLine: 1,
		EndLine:   1 + strings.Count(strings.TrimRight(string(header), "\n"), "\n"),
		Source:    string(header),
		Parent:    -1,
	}, true
}

// validUTF8OrEmpty guards against binary content slipping past the walker's
// filters. Extractors treat such files as parse failures rather than
// feeding garbage into the grammar.
func validUTF8OrEmpty(path string, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	if !utf8.Valid(src) {
		return &ParseError{Path: path, Err: fmt.Errorf("content is not valid UTF-8")}
	}
	return nil
}
