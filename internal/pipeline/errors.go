// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import "fmt"

// StageError wraps multiple errors from a pipeline stage.
// The CLI layer can type-assert to format these errors to stderr.
type StageError struct {
	Stage   string
	Message string
	Errors  []error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%d error(s))", e.Message, len(e.Errors))
}

// Unwrap exposes the wrapped stage error to errors.Is/errors.As when the
// stage reported exactly one, the common case for Pipeline.Run.
func (e *StageError) Unwrap() error {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return nil
}
