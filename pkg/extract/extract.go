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
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"
)

// Kind classifies a code unit by the shape of its declaration.
type Kind string

const (
	// KindFunction is a free function at any nesting level.
	KindFunction Kind = "function"

	// KindMethod is a function attached to a type or class.
	KindMethod Kind = "method"

	// KindClass is a class, struct, or interface declaration.
	KindClass Kind = "class"

	// KindModule is the file-level preamble (package clause, imports,
	// module-level statements that precede the first declaration).
	KindModule Kind = "module"
)

// Unit is a parsed, named span of source. Units are immutable once
// produced; a re-parse supersedes the previous units rather than
// mutating them.
type Unit struct {
	// Path is the repository-relative file path.
	Path string

	// Symbol is the declared name. Methods use "Type.Name" form.
	Symbol string

	// Kind classifies the declaration.
	Kind Kind

	// Language is the source language as reported by the extractor.
	Language string

	// StartByte and EndByte delimit the unit's span [StartByte, EndByte).
	StartByte int
	EndByte   int

	// StartLine and EndLine are 1-indexed line positions.
	StartLine int
	EndLine   int

	// Source is the unit's text, sliced from the file content.
	Source string

	// Parent is the index of the enclosing unit within the same extraction
	// result, or -1 for top-level units. This is a weak back-reference:
	// units never own each other.
	Parent int

	// Scope is the enclosing symbol name, "" for top-level units.
	// Denormalized from Parent so chunks keep it after units are discarded.
	Scope string
}

// Extractor parses one language's source files into ordered code units.
// Implementations must return units whose spans are contiguous and
// non-overlapping within the same nesting level.
type Extractor interface {
	// Language returns the canonical language name ("go", "python", ...).
	Language() string

	// Extract parses src and returns its code units in source order.
	// An empty file yields an empty slice and a nil error. A file with
	// syntax errors yields a *ParseError.
	Extract(path string, src []byte) ([]Unit, error)
}

// UnsupportedLanguageError reports a file whose language has no registered
// extractor. Callers skip the file and continue the run.
type UnsupportedLanguageError struct {
	Path     string
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	if e.Language == "" {
		return fmt.Sprintf("unsupported language for %s", e.Path)
	}
	return fmt.Sprintf("unsupported language %q for %s", e.Language, e.Path)
}

// ParseError reports a file that could not be parsed. It is scoped to a
// single file; ingestion of other files continues.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Registry maps language names to extractor variants. Adding a language is
// adding a variant here; callers never switch on language themselves.
type Registry struct {
	byLanguage map[string]Extractor
	logger     *slog.Logger
}

// NewRegistry creates a registry with all built-in language extractors.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		byLanguage: make(map[string]Extractor),
		logger:     logger,
	}
	r.Register(NewGoExtractor())
	r.Register(NewPythonExtractor())
	r.Register(NewTypeScriptExtractor())
	r.Register(NewJavaScriptExtractor())
	return r
}

// Register adds an extractor, replacing any previous one for the same
// language.
func (r *Registry) Register(e Extractor) {
	r.byLanguage[e.Language()] = e
}

// Languages returns the registered language names.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.byLanguage))
	for l := range r.byLanguage {
		langs = append(langs, l)
	}
	return langs
}

// ForFile returns the extractor for a file based on its extension.
// Returns *UnsupportedLanguageError when no extractor matches.
func (r *Registry) ForFile(path string) (Extractor, error) {
	lang := DetectLanguage(path)
	if lang == "" {
		return nil, &UnsupportedLanguageError{Path: path}
	}
	e, ok := r.byLanguage[lang]
	if !ok {
		return nil, &UnsupportedLanguageError{Path: path, Language: lang}
	}
	return e, nil
}

// Extract parses a file with the extractor registered for its language.
func (r *Registry) Extract(path string, src []byte) ([]Unit, error) {
	e, err := r.ForFile(path)
	if err != nil {
		return nil, err
	}
	return e.Extract(path, src)
}

// DetectLanguage detects the programming language from a file extension.
// Returns "" for unknown extensions.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	langMap := map[string]string{
		".go":  "go",
		".py":  "python",
		".js":  "javascript",
		".jsx": "javascript",
		".mjs": "javascript",
		".ts":  "typescript",
		".tsx": "typescript",
	}

	return langMap[ext]
}
