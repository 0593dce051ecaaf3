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
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor extracts code units from Python source using Tree-sitter.
type PythonExtractor struct {
	lang *sitter.Language
}

// NewPythonExtractor creates the Python extractor variant.
func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{lang: python.GetLanguage()}
}

// Language implements Extractor.
func (p *PythonExtractor) Language() string { return "python" }

// Extract parses Python source into units. Classes become class units with
// their methods as nested units (Parent points at the class); the module
// preamble (imports, docstring, module-level statements before the first
// definition) becomes a module unit named after the file.
func (p *PythonExtractor) Extract(path string, src []byte) ([]Unit, error) {
	if err := validUTF8OrEmpty(path, src); err != nil {
		return nil, err
	}
	if len(src) == 0 {
		return nil, nil
	}

	tree, err := parseTree(p.lang, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()

	var units []Unit
	firstDeclByte := -1

	for i := 0; i < int(root.ChildCount()); i++ {
		child := unwrapDecorated(root.Child(i))
		if child == nil {
			continue
		}

		switch child.Type() {
		case "function_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			if firstDeclByte < 0 {
				firstDeclByte = int(root.Child(i).StartByte())
			}
			// Span the decorated_definition wrapper so decorators stay with
			// the function they decorate.
			units = append(units, unitFromNode(root.Child(i), path, "python", nodeText(nameNode, src), KindFunction, src))

		case "class_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			if firstDeclByte < 0 {
				firstDeclByte = int(root.Child(i).StartByte())
			}
			className := nodeText(nameNode, src)
			classIdx := len(units)
			units = append(units, unitFromNode(root.Child(i), path, "python", className, KindClass, src))
			units = append(units, p.extractMethods(child, src, path, className, classIdx)...)
		}
	}

	moduleName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	result := make([]Unit, 0, len(units)+1)
	if mod, ok := moduleUnit(path, "python", moduleName, src, firstDeclByte); ok {
		result = append(result, mod)
		// Parent indices shift by one for the prepended module unit.
		for i := range units {
			if units[i].Parent >= 0 {
				units[i].Parent++
			}
		}
	}
	result = append(result, units...)

	return result, nil
}

// extractMethods collects function definitions in a class body as method
// units referencing their enclosing class.
func (p *PythonExtractor) extractMethods(classNode *sitter.Node, src []byte, path, className string, classIdx int) []Unit {
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var methods []Unit
	for i := 0; i < int(body.ChildCount()); i++ {
		stmt := body.Child(i)
		def := unwrapDecorated(stmt)
		if def == nil || def.Type() != "function_definition" {
			continue
		}
		nameNode := def.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		u := unitFromNode(stmt, path, "python", className+"."+nodeText(nameNode, src), KindMethod, src)
		u.Parent = classIdx
		u.Scope = className
		methods = append(methods, u)
	}
	return methods
}

// unwrapDecorated resolves decorated_definition wrappers to the definition
// they decorate. Other nodes pass through unchanged.
func unwrapDecorated(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.Type() != "decorated_definition" {
		return node
	}
	if def := node.ChildByFieldName("definition"); def != nil {
		return def
	}
	return node
}
