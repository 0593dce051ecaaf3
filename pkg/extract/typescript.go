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
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptExtractor extracts code units from TypeScript source.
// The .tsx dialect uses the dedicated TSX grammar; plain .ts uses the
// TypeScript grammar, which rejects JSX.
type TypeScriptExtractor struct {
	tsLang  *sitter.Language
	tsxLang *sitter.Language
}

// NewTypeScriptExtractor creates the TypeScript extractor variant.
func NewTypeScriptExtractor() *TypeScriptExtractor {
	return &TypeScriptExtractor{
		tsLang:  typescript.GetLanguage(),
		tsxLang: tsx.GetLanguage(),
	}
}

// Language implements Extractor.
func (t *TypeScriptExtractor) Language() string { return "typescript" }

// Extract implements Extractor.
func (t *TypeScriptExtractor) Extract(path string, src []byte) ([]Unit, error) {
	lang := t.tsLang
	if strings.EqualFold(filepath.Ext(path), ".tsx") {
		lang = t.tsxLang
	}
	return extractECMAScript(lang, "typescript", path, src)
}

// JavaScriptExtractor extracts code units from JavaScript source. The
// JavaScript grammar accepts JSX, so .jsx shares it.
type JavaScriptExtractor struct {
	lang *sitter.Language
}

// NewJavaScriptExtractor creates the JavaScript extractor variant.
func NewJavaScriptExtractor() *JavaScriptExtractor {
	return &JavaScriptExtractor{lang: javascript.GetLanguage()}
}

// Language implements Extractor.
func (j *JavaScriptExtractor) Language() string { return "javascript" }

// Extract implements Extractor.
func (j *JavaScriptExtractor) Extract(path string, src []byte) ([]Unit, error) {
	return extractECMAScript(j.lang, "javascript", path, src)
}

// extractECMAScript is the shared walk for the JS/TS grammar family:
// function declarations, class declarations with nested methods, and named
// arrow/function expressions bound by const/let/var. Export wrappers are
// unwrapped but their spans kept so `export` stays with the declaration.
func extractECMAScript(lang *sitter.Language, language, path string, src []byte) ([]Unit, error) {
	if err := validUTF8OrEmpty(path, src); err != nil {
		return nil, err
	}
	if len(src) == 0 {
		return nil, nil
	}

	tree, err := parseTree(lang, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()

	var units []Unit
	firstDeclByte := -1

	for i := 0; i < int(root.ChildCount()); i++ {
		span := root.Child(i)
		decl := span
		if decl.Type() == "export_statement" {
			if d := decl.ChildByFieldName("declaration"); d != nil {
				decl = d
			}
		}

		switch decl.Type() {
		case "function_declaration", "generator_function_declaration":
			nameNode := decl.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			if firstDeclByte < 0 {
				firstDeclByte = int(span.StartByte())
			}
			units = append(units, unitFromNode(span, path, language, nodeText(nameNode, src), KindFunction, src))

		case "class_declaration", "abstract_class_declaration":
			nameNode := decl.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			if firstDeclByte < 0 {
				firstDeclByte = int(span.StartByte())
			}
			className := nodeText(nameNode, src)
			classIdx := len(units)
			units = append(units, unitFromNode(span, path, language, className, KindClass, src))
			units = append(units, ecmaClassMethods(decl, src, path, language, className, classIdx)...)

		case "lexical_declaration", "variable_declaration":
			name, ok := ecmaNamedFunctionBinding(decl, src)
			if !ok {
				continue
			}
			if firstDeclByte < 0 {
				firstDeclByte = int(span.StartByte())
			}
			units = append(units, unitFromNode(span, path, language, name, KindFunction, src))
		}
	}

	moduleName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	result := make([]Unit, 0, len(units)+1)
	if mod, ok := moduleUnit(path, language, moduleName, src, firstDeclByte); ok {
		result = append(result, mod)
		for i := range units {
			if units[i].Parent >= 0 {
				units[i].Parent++
			}
		}
	}
	result = append(result, units...)

	return result, nil
}

// ecmaClassMethods collects method_definition nodes in a class body.
func ecmaClassMethods(classNode *sitter.Node, src []byte, path, language, className string, classIdx int) []Unit {
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var methods []Unit
	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		if member.Type() != "method_definition" {
			continue
		}
		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		u := unitFromNode(member, path, language, className+"."+nodeText(nameNode, src), KindMethod, src)
		u.Parent = classIdx
		u.Scope = className
		methods = append(methods, u)
	}
	return methods
}

// ecmaNamedFunctionBinding reports whether a variable declaration binds a
// single arrow function or function expression, returning the bound name.
// `const handler = async (req) => ...` is a function unit in all but name.
func ecmaNamedFunctionBinding(decl *sitter.Node, src []byte) (string, bool) {
	for i := 0; i < int(decl.ChildCount()); i++ {
		child := decl.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		valueNode := child.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			return "", false
		}
		switch valueNode.Type() {
		case "arrow_function", "function_expression", "function", "generator_function":
			return nodeText(nameNode, src), true
		}
		return "", false
	}
	return "", false
}
