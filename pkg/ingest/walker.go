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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"log/slog"

	"github.com/quarrylabs/quarry/internal/globmatch"
	"github.com/quarrylabs/quarry/pkg/extract"
)

// FileInfo is one walkable source file with its content hash.
type FileInfo struct {
	// Path is repository-relative with forward slashes.
	Path string

	// AbsPath locates the file on disk.
	AbsPath string

	// Size in bytes.
	Size int64

	// Hash is the sha256 hex digest of the content.
	Hash string

	// Language as detected from the extension.
	Language string
}

// WalkResult is the scanned repository tree.
type WalkResult struct {
	Files       []FileInfo
	SkipReasons map[string]int
}

// Walk scans the repository tree, hashes every supported source file, and
// records why everything else was skipped. Files are returned in path
// order so downstream processing is deterministic.
func Walk(cfg Config, logger *slog.Logger) (*WalkResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	root, err := filepath.Abs(cfg.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("stat repo root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("repo root %s is not a directory", root)
	}

	ignore := append(append([]string{}, DefaultIgnoreGlobs...), cfg.IgnoreGlobs...)

	result := &WalkResult{SkipReasons: make(map[string]int)}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are recorded, not fatal.
			result.SkipReasons["unreadable"]++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && d.Name() != "." || globmatch.Any(rel, ignore) {
				result.SkipReasons["ignored"]++
				return fs.SkipDir
			}
			return nil
		}

		if globmatch.Any(rel, ignore) {
			result.SkipReasons["ignored"]++
			return nil
		}

		lang := extract.DetectLanguage(rel)
		if lang == "" {
			result.SkipReasons["unsupported_language"]++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.SkipReasons["unreadable"]++
			return nil
		}
		if info.Size() > cfg.MaxFileSize {
			result.SkipReasons["too_large"]++
			logger.Debug("walk.skip.too_large", "path", rel, "size", info.Size())
			return nil
		}
		if info.Mode()&os.ModeType != 0 {
			result.SkipReasons["not_regular"]++
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			result.SkipReasons["unreadable"]++
			logger.Warn("walk.hash.error", "path", rel, "err", err)
			return nil
		}

		result.Files = append(result.Files, FileInfo{
			Path:     rel,
			AbsPath:  path,
			Size:     info.Size(),
			Hash:     hash,
			Language: lang,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	return result, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
