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

package main

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/quarrylabs/quarry/pkg/ingest"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled indicates whether progress bars should be shown.
	// Disabled when --json or --quiet are used, or when stderr is not a TTY.
	Enabled bool

	// Writer is where progress output goes (always os.Stderr).
	Writer io.Writer

	// NoColor disables colored output in progress bars.
	NoColor bool
}

// NewProgressConfig creates a progress configuration from global flags and
// TTY detection. Progress is disabled when:
//   - --json is set (quiet is auto-set)
//   - --quiet is set
//   - stderr is not a TTY (piped output, CI environments)
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && isatty.IsTerminal(os.Stderr.Fd())

	return ProgressConfig{
		Enabled: enabled,
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewProgressBar creates a progress bar with consistent styling.
// Returns nil if progress is disabled, allowing callers to check for nil.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner creates an indeterminate spinner for operations with an
// unknown total. Returns nil if progress is disabled.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}

// phaseDescription maps a pipeline state to the bar label.
func phaseDescription(state ingest.State) string {
	switch state {
	case ingest.StateScanning:
		return "Scanning repository"
	case ingest.StateExtracting:
		return "Extracting code units"
	case ingest.StateEmbedding:
		return "Generating embeddings"
	case ingest.StateIndexing:
		return "Updating index"
	case ingest.StateReconciling:
		return "Reconciling deletions"
	default:
		return string(state)
	}
}

// attachProgress wires a phase-aware progress bar into the pipeline. A new
// bar starts whenever the pipeline moves to the next phase.
func attachProgress(p *ingest.Pipeline, cfg ProgressConfig) {
	if !cfg.Enabled {
		return
	}

	var bar *progressbar.ProgressBar
	var current ingest.State

	p.Progress = func(state ingest.State, done, total int) {
		if state != current || bar == nil {
			if bar != nil {
				_ = bar.Finish()
			}
			current = state
			bar = NewProgressBar(cfg, int64(total), phaseDescription(state))
		}
		if bar != nil {
			_ = bar.Set(done)
		}
	}
}
