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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// ContentHash returns the sha256 hex digest of a chunk's text. The hash
// feeds both the chunk ID and file-level reconciliation, so it must stay
// a pure function of the text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ID generates a deterministic chunk ID.
// Strategy: hash(normalized_path | start_byte | end_byte | content_hash).
// The content hash is included so an edited body yields a new ID even when
// the span happens to stay identical; byte offsets disambiguate same-named
// siblings. Symbol names are NOT included, so a pure rename produces a new
// ID only through the content hash, never through metadata drift.
func ID(path string, startByte, endByte int, contentHash string) string {
	idStr := fmt.Sprintf("%s|%d|%d|%s", normalizePath(path), startByte, endByte, contentHash)
	sum := sha256.Sum256([]byte(idStr))
	return fmt.Sprintf("chunk:%s", hex.EncodeToString(sum[:]))
}

// normalizePath normalizes a file path for consistent ID generation.
// Cross-platform: forward slashes, no leading ./ or /, cleaned.
func normalizePath(path string) string {
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}
