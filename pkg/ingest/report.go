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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// State names the phase an ingestion run is in.
type State string

const (
	StateScanning    State = "scanning"
	StateExtracting  State = "extracting"
	StateEmbedding   State = "embedding"
	StateIndexing    State = "indexing"
	StateReconciling State = "reconciling"
	StateDone        State = "done"
)

// FileStatus is the per-file outcome of a run.
type FileStatus string

const (
	FileOK        FileStatus = "ok"
	FileUnchanged FileStatus = "unchanged"
	FileFailed    FileStatus = "failed"
	FileDeleted   FileStatus = "deleted"
)

// FileOutcome records what happened to one file. Failed files carry the
// error class ("ParseError", "EmbedError") and message; the run itself
// never aborts on them.
type FileOutcome struct {
	Path      string     `json:"path"`
	Status    FileStatus `json:"status"`
	ErrorKind string     `json:"error_kind,omitempty"`
	Error     string     `json:"error,omitempty"`
	Chunks    int        `json:"chunks,omitempty"`
}

// Report summarizes one ingestion run.
type Report struct {
	RunID string `json:"run_id"`
	State State  `json:"state"`

	FilesScanned   int `json:"files_scanned"`
	FilesAdded     int `json:"files_added"`
	FilesModified  int `json:"files_modified"`
	FilesDeleted   int `json:"files_deleted"`
	FilesUnchanged int `json:"files_unchanged"`
	FilesFailed    int `json:"files_failed"`

	UnitsExtracted int `json:"units_extracted"`
	ChunksIndexed  int `json:"chunks_indexed"`
	ChunksDeleted  int `json:"chunks_deleted"`
	EmbedCalls     int `json:"embed_calls"`
	EmbedRetries   int `json:"embed_retries"`

	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
	Files       []FileOutcome  `json:"files,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	ScanDuration    time.Duration `json:"scan_duration"`
	ExtractDuration time.Duration `json:"extract_duration"`
	EmbedDuration   time.Duration `json:"embed_duration"`
	IndexDuration   time.Duration `json:"index_duration"`
	TotalDuration   time.Duration `json:"total_duration"`
}

// NewReport creates a report for a fresh run.
func NewReport() *Report {
	return &Report{
		RunID:       uuid.NewString(),
		State:       StateScanning,
		SkipReasons: make(map[string]int),
		StartedAt:   time.Now(),
	}
}

func (r *Report) addOutcome(o FileOutcome) {
	r.Files = append(r.Files, o)
	if o.Status == FileFailed {
		r.FilesFailed++
	}
}

// Failed returns the outcomes of files that failed this run.
func (r *Report) Failed() []FileOutcome {
	var out []FileOutcome
	for _, f := range r.Files {
		if f.Status == FileFailed {
			out = append(out, f)
		}
	}
	return out
}

// WriteFile persists the report as JSON, atomically (temp file + rename)
// so a crash mid-write never leaves a torn report behind.
func (r *Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write report temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// LoadReport reads a previously written run report. Returns nil without
// error when none exists.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}
