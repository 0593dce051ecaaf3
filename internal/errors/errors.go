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

// Package errors provides structured error handling for the quarry CLI.
//
// It defines UserError, which carries what went wrong, why it happened, and
// how to fix it, plus semantic exit codes per error category.
//
// # Usage Example
//
//	err := errors.NewIndexError(
//	    "Cannot open the quarry index",
//	    "The index database is locked by another process",
//	    "Close other quarry instances or run: quarry reset --yes",
//	    underlyingErr,
//	)
//	errors.FatalError(err, jsonMode)
//
// # Formatted Output
//
// The Format() method produces colored terminal output:
//
//	Error: Cannot open the quarry index
//	Cause: The index database is locked by another process
//	Fix:   Close other quarry instances or run: quarry reset --yes
//
// # Exit Codes
//
//   - ExitSuccess (0): successful execution
//   - ExitConfig (1): configuration errors (missing/invalid .quarry/project.yaml)
//   - ExitIndex (2): index store errors (locked, corrupted, model mismatch)
//   - ExitNetwork (3): embedding backend errors (connection failed, timeout)
//   - ExitInput (4): invalid user input (bad arguments, validation)
//   - ExitPermission (5): permission denied
//   - ExitNotFound (6): resource not found (no index, no such path)
//   - ExitInternal (10): internal errors (bugs, panics)
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitConfig indicates configuration errors (missing/invalid config files).
	ExitConfig = 1

	// ExitIndex indicates index store errors (file locked, corrupted, model mismatch).
	ExitIndex = 2

	// ExitNetwork indicates embedding backend or network errors.
	ExitNetwork = 3

	// ExitInput indicates invalid user input (bad arguments, validation errors).
	ExitInput = 4

	// ExitPermission indicates permission denied errors.
	ExitPermission = 5

	// ExitNotFound indicates resource not found errors.
	ExitNotFound = 6

	// ExitInternal indicates internal errors (bugs, unexpected panics).
	// Exit code 10 signals "this is a bug that should be reported".
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong (user-facing error description)
//   - Cause: why it happened (diagnostic information)
//   - Fix: how to fix it (actionable suggestion)
//
// UserError also carries an exit code for consistent CLI exit behavior and
// optionally wraps an underlying error for error chain compatibility.
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred.
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is used when exiting due to this error.
	ExitCode int

	// Err is the underlying error, if any. Enables errors.Is/As.
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration error with exit code ExitConfig.
//
// Example:
//
//	return NewConfigError(
//	    "Cannot load quarry configuration",
//	    "The config file .quarry/project.yaml is missing",
//	    "Run 'quarry init' to create a new configuration",
//	    nil,
//	)
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitConfig,
		Err:      err,
	}
}

// NewIndexError creates an index store error with exit code ExitIndex.
//
// Use this for errors from the persistent index: locked files, corruption,
// failed transactions, or an index built with a different embedding model.
//
// Example:
//
//	return NewIndexError(
//	    "Cannot open the quarry index",
//	    "The index database is locked by another process",
//	    "Close other quarry instances or run: quarry reset --yes",
//	    err,
//	)
func NewIndexError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitIndex,
		Err:      err,
	}
}

// NewNetworkError creates a network error with exit code ExitNetwork.
//
// Example:
//
//	return NewNetworkError(
//	    "Cannot reach the embedding backend",
//	    "Connection to http://localhost:11434 timed out",
//	    "Check that ollama is running, or switch providers in .quarry/project.yaml",
//	    err,
//	)
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitNetwork,
		Err:      err,
	}
}

// NewInputError creates an input validation error with exit code ExitInput.
// Input errors typically do not wrap an underlying error.
//
// Example:
//
//	return NewInputError(
//	    "Invalid value for -k",
//	    "k must be a positive integer",
//	    "Try: quarry search -k 10 \"your query\"",
//	)
func NewInputError(msg, cause, fix string) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitInput,
		Err:      nil,
	}
}

// NewPermissionError creates a permission denied error with exit code ExitPermission.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitPermission,
		Err:      err,
	}
}

// NewNotFoundError creates a resource not found error with exit code ExitNotFound.
// Not found errors typically do not wrap an underlying error.
//
// Example:
//
//	return NewNotFoundError(
//	    "No index found",
//	    "This repository has not been ingested yet",
//	    "Run 'quarry ingest' first",
//	)
func NewNotFoundError(msg, cause, fix string) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitNotFound,
		Err:      nil,
	}
}

// NewInternalError creates an internal error with exit code ExitInternal.
// Internal errors indicate bugs and should be reported to the maintainers.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitInternal,
		Err:      err,
	}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output has colored sections for Error (red/bold), Cause (yellow), and
// Fix (green). Color respects the NO_COLOR environment variable and the
// noColor parameter. Empty Cause or Fix fields are omitted.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format for --json mode.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// A UserError prints via Format() or, in JSON mode, ToJSON(). Anything else
// prints a plain message and exits with ExitInternal. Never returns.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			// Encoding failure is ignored; we are about to exit anyway.
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
