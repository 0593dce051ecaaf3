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

import "time"

// Config parameterizes an ingestion run.
type Config struct {
	// RepoRoot is the repository directory to ingest.
	RepoRoot string `yaml:"repo_root"`

	// IgnoreGlobs lists path patterns excluded from scanning, in addition
	// to DefaultIgnoreGlobs.
	IgnoreGlobs []string `yaml:"ignore_globs,omitempty"`

	// MaxFileSize skips files larger than this many bytes. Defaults to 1 MiB.
	MaxFileSize int64 `yaml:"max_file_size,omitempty"`

	// MaxTokens and MinTokens are the chunking bounds.
	MaxTokens int `yaml:"max_tokens,omitempty"`
	MinTokens int `yaml:"min_tokens,omitempty"`

	// ExtractWorkers bounds parallel file extraction. Defaults to 4.
	ExtractWorkers int `yaml:"extract_workers,omitempty"`

	// EmbedWorkers bounds concurrent embedding calls. Defaults to 4.
	EmbedWorkers int `yaml:"embed_workers,omitempty"`

	// EmbedBatchSize is how many chunks go into one provider call.
	// Defaults to 32.
	EmbedBatchSize int `yaml:"embed_batch_size,omitempty"`

	// BatchTimeout bounds one embedding call. Defaults to 60s.
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty"`

	// Retry governs transient embedding failures.
	Retry RetryConfig `yaml:"retry,omitempty"`

	// Full forces a rebuild: the persisted snapshot is ignored and every
	// file re-ingests.
	Full bool `yaml:"-"`
}

// RetryConfig bounds retries of transient embedding failures.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts,omitempty"`
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty"`
	Multiplier     float64       `yaml:"multiplier,omitempty"`
}

// DefaultIgnoreGlobs are always excluded: VCS internals, dependency trees,
// build output, and generated bundles that would only pollute the index.
var DefaultIgnoreGlobs = []string{
	".git/**",
	".quarry/**",
	"node_modules/**",
	"vendor/**",
	"dist/**",
	"build/**",
	"target/**",
	"__pycache__/**",
	".venv/**",
	"venv/**",
	"*.min.js",
	"*.pb.go",
	"*_pb2.py",
}

// withDefaults fills zero values so callers can pass partial configs.
func (c Config) withDefaults() Config {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 1 << 20
	}
	if c.ExtractWorkers <= 0 {
		c.ExtractWorkers = 4
	}
	if c.EmbedWorkers <= 0 {
		c.EmbedWorkers = 4
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 32
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 60 * time.Second
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialBackoff <= 0 {
		c.Retry.InitialBackoff = 200 * time.Millisecond
	}
	if c.Retry.MaxBackoff <= 0 {
		c.Retry.MaxBackoff = 2 * time.Second
	}
	if c.Retry.Multiplier <= 1.0 {
		c.Retry.Multiplier = 2.0
	}
	return c
}
