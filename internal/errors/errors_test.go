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

package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err: &UserError{
				Message: "Cannot open the quarry index",
				Err:     fmt.Errorf("file locked"),
			},
			want: "Cannot open the quarry index: file locked",
		},
		{
			name: "without underlying error",
			err: &UserError{
				Message: "Invalid input",
				Err:     nil,
			},
			want: "Invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("UserError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitConfig", ExitConfig, 1},
		{"ExitIndex", ExitIndex, 2},
		{"ExitNetwork", ExitNetwork, 3},
		{"ExitInput", ExitInput, 4},
		{"ExitPermission", ExitPermission, 5},
		{"ExitNotFound", ExitNotFound, 6},
		{"ExitInternal", ExitInternal, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.exitCode != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.exitCode, tt.want)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	underlyingErr := fmt.Errorf("underlying error")

	tests := []struct {
		name         string
		constructor  func() *UserError
		wantExitCode int
		wantHasErr   bool
	}{
		{
			name:         "NewConfigError",
			constructor:  func() *UserError { return NewConfigError("msg", "cause", "fix", underlyingErr) },
			wantExitCode: ExitConfig,
			wantHasErr:   true,
		},
		{
			name:         "NewIndexError",
			constructor:  func() *UserError { return NewIndexError("msg", "cause", "fix", underlyingErr) },
			wantExitCode: ExitIndex,
			wantHasErr:   true,
		},
		{
			name:         "NewNetworkError",
			constructor:  func() *UserError { return NewNetworkError("msg", "cause", "fix", underlyingErr) },
			wantExitCode: ExitNetwork,
			wantHasErr:   true,
		},
		{
			name:         "NewInputError",
			constructor:  func() *UserError { return NewInputError("msg", "cause", "fix") },
			wantExitCode: ExitInput,
			wantHasErr:   false,
		},
		{
			name:         "NewPermissionError",
			constructor:  func() *UserError { return NewPermissionError("msg", "cause", "fix", underlyingErr) },
			wantExitCode: ExitPermission,
			wantHasErr:   true,
		},
		{
			name:         "NewNotFoundError",
			constructor:  func() *UserError { return NewNotFoundError("msg", "cause", "fix") },
			wantExitCode: ExitNotFound,
			wantHasErr:   false,
		},
		{
			name:         "NewInternalError",
			constructor:  func() *UserError { return NewInternalError("msg", "cause", "fix", underlyingErr) },
			wantExitCode: ExitInternal,
			wantHasErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.constructor()

			if got.Message != "msg" || got.Cause != "cause" || got.Fix != "fix" {
				t.Errorf("fields = %q/%q/%q, want msg/cause/fix", got.Message, got.Cause, got.Fix)
			}
			if got.ExitCode != tt.wantExitCode {
				t.Errorf("ExitCode = %d, want %d", got.ExitCode, tt.wantExitCode)
			}
			hasErr := got.Err != nil
			if hasErr != tt.wantHasErr {
				t.Errorf("has underlying error = %v, want %v", hasErr, tt.wantHasErr)
			}
		})
	}
}

func TestErrorChain(t *testing.T) {
	t.Run("errors.Is works with UserError", func(t *testing.T) {
		sentinel := fmt.Errorf("sentinel error")
		wrapped := fmt.Errorf("wrapped: %w", sentinel)
		userErr := NewIndexError("index error", "cause", "fix", wrapped)

		if !errors.Is(userErr, sentinel) {
			t.Error("errors.Is should find sentinel error in chain")
		}
	})

	t.Run("errors.As extracts the outermost UserError", func(t *testing.T) {
		innerErr := NewConfigError("config error", "cause", "fix", nil)
		outerErr := NewIndexError("index error", "cause", "fix", innerErr)

		var targetErr *UserError
		if !errors.As(outerErr, &targetErr) {
			t.Fatal("errors.As should extract UserError")
		}
		if targetErr.ExitCode != ExitIndex {
			t.Errorf("ExitCode = %d, want %d", targetErr.ExitCode, ExitIndex)
		}

		var cfgErr *UserError
		if !errors.As(targetErr.Err, &cfgErr) {
			t.Fatal("errors.As should extract nested UserError")
		}
		if cfgErr.ExitCode != ExitConfig {
			t.Errorf("nested ExitCode = %d, want %d", cfgErr.ExitCode, ExitConfig)
		}
	})
}

func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want []string
	}{
		{
			name: "full error",
			err: &UserError{
				Message:  "Cannot open the quarry index",
				Cause:    "The index database is locked",
				Fix:      "Close other quarry instances",
				ExitCode: ExitIndex,
			},
			want: []string{"Error: Cannot open the quarry index", "Cause: The index database is locked", "Fix:   Close other quarry instances"},
		},
		{
			name: "error without cause",
			err: &UserError{
				Message:  "Invalid input",
				Fix:      "Use valid format",
				ExitCode: ExitInput,
			},
			want: []string{"Error: Invalid input", "Fix:   Use valid format"},
		},
		{
			name: "minimal error",
			err: &UserError{
				Message:  "Something failed",
				ExitCode: ExitInternal,
			},
			want: []string{"Error: Something failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(true)
			for _, substr := range tt.want {
				if !strings.Contains(got, substr) {
					t.Errorf("Format() output missing %q\nGot: %s", substr, got)
				}
			}
		})
	}
}

func TestUserError_Format_NoColor(t *testing.T) {
	oldNoColor := os.Getenv("NO_COLOR")
	defer func() {
		if oldNoColor != "" {
			os.Setenv("NO_COLOR", oldNoColor)
		} else {
			os.Unsetenv("NO_COLOR")
		}
	}()

	err := &UserError{
		Message:  "Test error",
		Cause:    "Test cause",
		Fix:      "Test fix",
		ExitCode: ExitConfig,
	}

	os.Setenv("NO_COLOR", "1")
	output := err.Format(false)

	if strings.Contains(output, "\x1b[") {
		t.Error("Format() output contains ANSI codes despite NO_COLOR being set")
	}
}

func TestUserError_ToJSON(t *testing.T) {
	err := &UserError{
		Message:  "Invalid configuration",
		Cause:    "Missing required field",
		Fix:      "Run: quarry init",
		ExitCode: ExitConfig,
	}

	got := err.ToJSON()
	if got.Error != "Invalid configuration" {
		t.Errorf("ToJSON().Error = %q", got.Error)
	}
	if got.Fix != "Run: quarry init" {
		t.Errorf("ToJSON().Fix = %q", got.Fix)
	}
	if got.ExitCode != ExitConfig {
		t.Errorf("ToJSON().ExitCode = %d, want %d", got.ExitCode, ExitConfig)
	}
}

func TestFatalError_NilDoesNothing(t *testing.T) {
	FatalError(nil, false)
}
