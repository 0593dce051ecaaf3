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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoExtractor extracts code units from Go source using Tree-sitter.
type GoExtractor struct {
	lang *sitter.Language
}

// NewGoExtractor creates the Go extractor variant.
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{lang: golang.GetLanguage()}
}

// Language implements Extractor.
func (g *GoExtractor) Language() string { return "go" }

// Extract parses Go source into units: one module unit for the package
// clause and imports, one unit per function, method, and type declaration.
// Go methods are top-level declarations, so they carry their receiver type
// in Scope rather than a Parent reference.
func (g *GoExtractor) Extract(path string, src []byte) ([]Unit, error) {
	if err := validUTF8OrEmpty(path, src); err != nil {
		return nil, err
	}
	if len(src) == 0 {
		return nil, nil
	}

	tree, err := parseTree(g.lang, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	packageName := goPackageName(root, src)

	var units []Unit
	firstDeclByte := -1

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)

		switch child.Type() {
		case "function_declaration":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			if firstDeclByte < 0 {
				firstDeclByte = int(child.StartByte())
			}
			units = append(units, unitFromNode(child, path, "go", nodeText(nameNode, src), KindFunction, src))

		case "method_declaration":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			if firstDeclByte < 0 {
				firstDeclByte = int(child.StartByte())
			}
			recv := goReceiverType(child.ChildByFieldName("receiver"), src)
			symbol := nodeText(nameNode, src)
			if recv != "" {
				symbol = recv + "." + symbol
			}
			u := unitFromNode(child, path, "go", symbol, KindMethod, src)
			u.Scope = recv
			units = append(units, u)

		case "type_declaration":
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() != "type_spec" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				typeNode := spec.ChildByFieldName("type")
				if nameNode == nil || typeNode == nil {
					continue
				}
				tt := typeNode.Type()
				if tt != "struct_type" && tt != "interface_type" {
					continue
				}
				if firstDeclByte < 0 {
					firstDeclByte = int(child.StartByte())
				}
				// The unit spans the whole type_declaration so `type X struct`
				// keeps its keyword; single-spec declarations are the norm.
				units = append(units, unitFromNode(child, path, "go", nodeText(nameNode, src), KindClass, src))
			}
		}
	}

	result := make([]Unit, 0, len(units)+1)
	if mod, ok := moduleUnit(path, "go", packageName, src, firstDeclByte); ok {
		result = append(result, mod)
	}
	result = append(result, units...)

	return result, nil
}

// goPackageName returns the declared package name, or "main" as fallback.
func goPackageName(root *sitter.Node, src []byte) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() == "package_clause" {
			for j := 0; j < int(child.ChildCount()); j++ {
				if child.Child(j).Type() == "package_identifier" {
					return nodeText(child.Child(j), src)
				}
			}
		}
	}
	return "main"
}

// goReceiverType extracts the base type name from a method receiver.
// From "(s *Server)" it returns "Server"; generics are stripped.
func goReceiverType(receiver *sitter.Node, src []byte) string {
	if receiver == nil {
		return ""
	}
	for i := 0; i < int(receiver.ChildCount()); i++ {
		child := receiver.Child(i)
		if child.Type() != "parameter_declaration" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		name := nodeText(typeNode, src)
		name = strings.TrimPrefix(name, "*")
		if idx := strings.Index(name, "["); idx > 0 {
			name = name[:idx]
		}
		return name
	}
	return ""
}
