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

// Package globmatch matches repository-relative paths against glob
// patterns. Unlike path.Match it understands ** and applies an implicit
// **/ prefix, so "vendor/**" excludes a vendor directory at any depth.
package globmatch

import (
	"path/filepath"
	"strings"
)

// Match reports whether path matches pattern. Supported syntax:
//   - *      any run of non-separator characters
//   - **     any run of characters, separators included
//   - ?      any single non-separator character
//   - [abc]  any listed character; [a-z] ranges; [!abc] or [^abc] negation
//
// Patterns not anchored with ** may match at any directory level.
func Match(path, pattern string) bool {
	path = filepath.ToSlash(path)
	pattern = filepath.ToSlash(pattern)

	// dir/** matches the directory and everything under it, at any depth.
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
		parts := strings.Split(path, "/")
		for i := range parts {
			sub := strings.Join(parts[i:], "/")
			if sub == prefix || strings.HasPrefix(sub, prefix+"/") {
				return true
			}
		}
	}

	// *.ext matches by extension regardless of directory.
	if strings.HasPrefix(pattern, "*.") && !strings.Contains(pattern, "/") {
		return strings.HasSuffix(path, pattern[1:])
	}

	// **/name matches name at any depth, including the root.
	if strings.HasPrefix(pattern, "**/") {
		suffix := pattern[3:]
		if path == suffix || strings.HasSuffix(path, "/"+suffix) {
			return true
		}
		if match(path, suffix) {
			return true
		}
		parts := strings.Split(path, "/")
		for i := range parts {
			if match(strings.Join(parts[i:], "/"), suffix) {
				return true
			}
		}
		return false
	}

	// Literal patterns match exactly, or as a whole path component.
	if !strings.ContainsAny(pattern, "*?[") {
		return path == pattern || strings.HasSuffix(path, "/"+pattern) || strings.HasPrefix(path, pattern+"/")
	}

	if match(path, pattern) {
		return true
	}

	// Implicit **/ prefix: try each path suffix.
	parts := strings.Split(path, "/")
	for i := range parts {
		if match(strings.Join(parts[i:], "/"), pattern) {
			return true
		}
	}
	return false
}

// Any reports whether path matches any of the patterns.
func Any(path string, patterns []string) bool {
	for _, p := range patterns {
		if Match(path, p) {
			return true
		}
	}
	return false
}

func match(path, pattern string) bool {
	return matchAt(path, pattern, 0, 0)
}

func matchAt(path, pattern string, pi, pti int) bool {
	for pi < len(path) || pti < len(pattern) {
		if pti >= len(pattern) {
			return false
		}

		if pti+1 < len(pattern) && pattern[pti] == '*' && pattern[pti+1] == '*' {
			next := pti + 2
			if next < len(pattern) && pattern[next] == '/' {
				next++
			}
			if next >= len(pattern) {
				return true
			}
			for i := pi; i <= len(path); i++ {
				if matchAt(path, pattern, i, next) {
					return true
				}
			}
			return false
		}

		if pattern[pti] == '*' {
			next := pti + 1
			for i := pi; i <= len(path); i++ {
				if i > pi && path[i-1] == '/' {
					break
				}
				if matchAt(path, pattern, i, next) {
					return true
				}
			}
			return false
		}

		if pattern[pti] == '?' {
			if pi >= len(path) || path[pi] == '/' {
				return false
			}
			pi++
			pti++
			continue
		}

		if pattern[pti] == '[' {
			if pi >= len(path) {
				return false
			}
			closeIdx := pti + 1
			if closeIdx < len(pattern) && (pattern[closeIdx] == '!' || pattern[closeIdx] == '^') {
				closeIdx++
			}
			if closeIdx < len(pattern) && pattern[closeIdx] == ']' {
				closeIdx++
			}
			for closeIdx < len(pattern) && pattern[closeIdx] != ']' {
				closeIdx++
			}
			if closeIdx >= len(pattern) {
				// Unclosed class: treat [ as literal.
				if path[pi] != '[' {
					return false
				}
				pi++
				pti++
				continue
			}
			if !matchClass(path[pi], pattern[pti+1:closeIdx]) {
				return false
			}
			pi++
			pti = closeIdx + 1
			continue
		}

		if pi >= len(path) || path[pi] != pattern[pti] {
			return false
		}
		pi++
		pti++
	}
	return pi == len(path) && pti == len(pattern)
}

func matchClass(c byte, class string) bool {
	if len(class) == 0 {
		return false
	}

	negated := false
	i := 0
	if class[0] == '!' || class[0] == '^' {
		negated = true
		i = 1
	}

	matched := false
	for i < len(class) {
		if i+2 < len(class) && class[i+1] == '-' {
			if c >= class[i] && c <= class[i+2] {
				matched = true
			}
			i += 3
			continue
		}
		if c == class[i] {
			matched = true
		}
		i++
	}

	if negated {
		return !matched
	}
	return matched
}
