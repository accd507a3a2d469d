// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errors provides enhanced error handling with actionable guidance
// for the loud error classes of the conversion cache: argument errors, IO
// errors, and type errors. Quiet failures (cache misses) are never wrapped
// here — callers represent those with nil/404, not an error value.
package errors

import (
	"fmt"
	"strings"
)

// UserError represents an error with actionable guidance for users.
type UserError struct {
	Title      string   // Clear, concise error title
	Context    string   // Why this error matters
	Solutions  []string // Ordered list of things to try
	DocsTopic  string   // Related docs topic (optional)
	Underlying error    // Original error (optional)
}

// Error implements the error interface.
func (e *UserError) Error() string {
	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(e.Title)
	b.WriteString("\n")

	if e.Context != "" {
		b.WriteString("\n")
		b.WriteString(e.Context)
		b.WriteString("\n")
	}

	if len(e.Solutions) > 0 {
		b.WriteString("\nTry these solutions:\n")
		for i, solution := range e.Solutions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, solution)
		}
	}

	if e.DocsTopic != "" {
		fmt.Fprintf(&b, "\nFor more help: oooclient docs %s\n", e.DocsTopic)
	}

	if e.Underlying != nil {
		fmt.Fprintf(&b, "\nDetails: %v\n", e.Underlying)
	}

	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *UserError) Unwrap() error {
	return e.Underlying
}

// SourceNotFoundError creates an error for a missing source document.
func SourceNotFoundError(path string, err error) *UserError {
	return &UserError{
		Title:   fmt.Sprintf("Source document not found: %s", path),
		Context: "The conversion pipeline needs a readable source file to convert.",
		Solutions: []string{
			"Check that the file path is correct",
			"Verify the file exists and is readable by the current user",
			"If path is a bare filename, confirm the working directory",
		},
		Underlying: err,
	}
}

// InvalidOptionsError creates an error for a malformed option set, either
// unparsable request fields or a payload that fails JSON Schema validation.
func InvalidOptionsError(fieldErrors []string) *UserError {
	details := strings.Join(fieldErrors, "\n  - ")
	return &UserError{
		Title:   "Conversion options are invalid",
		Context: "The request carries unrecognized or malformed option keys.",
		Solutions: []string{
			"Review the validation errors below",
			"Check the recognized option key table",
			"Remove unknown oocp-* fields from the request",
		},
		DocsTopic:  "options",
		Underlying: fmt.Errorf("validation errors:\n  - %s", details),
	}
}

// ConversionFailedError wraps a non-zero status from the external office
// engine. Metadata travels separately as data (spec.md §7); this error is
// only raised where a caller needs the loud form (e.g. the CLI).
func ConversionFailedError(status int, err error) *UserError {
	return &UserError{
		Title:   fmt.Sprintf("Conversion failed (oocp_status=%d)", status),
		Context: "The external office engine reported a non-zero exit status.",
		Solutions: []string{
			"Confirm the office engine is running and reachable",
			"Check the source document opens correctly in a desktop office suite",
			"Retry with a narrower set of conversion options",
		},
		Underlying: err,
	}
}

// WriteError creates an error for artifact or catalog write failures.
func WriteError(path string, err error) *UserError {
	return &UserError{
		Title:   fmt.Sprintf("Failed to write file: %s", path),
		Context: "The cache could not persist a file to disk.",
		Solutions: []string{
			"Check that you have write permissions in the cache directory",
			"Verify there is enough disk space available",
			"Ensure the parent directory exists and is writable",
		},
		Underlying: err,
	}
}

// CacheDirError creates an error for a cache root that exists but is not a
// directory (spec.md §4.4, "fail loudly").
func CacheDirError(path string, err error) *UserError {
	return &UserError{
		Title:   fmt.Sprintf("Cache directory is unusable: %s", path),
		Context: "The cache root must be a directory the process can create and traverse.",
		Solutions: []string{
			"Remove the conflicting file at this path",
			"Point --cachedir at an empty or existing directory",
		},
		Underlying: err,
	}
}
