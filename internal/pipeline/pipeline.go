// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline implements a small reusable Stage/Context/Pipeline
// engine. It carries no domain knowledge of its own; callers supply a
// context type and a set of stages that operate on it.
package pipeline

// Stage is a single step in a pipeline over a context of type T.
type Stage[T any] interface {
	Name() string
	Run(ctx *T) error
}

// Pipeline executes a sequence of stages against a shared context.
type Pipeline[T any] struct {
	stages []Stage[T]
}

// New creates a pipeline from the given stages, run in order.
func New[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// Run executes each stage in order, stopping at the first error. A failing
// stage's error is wrapped in a *StageError naming the stage, so a caller
// that needs to report which step of the pipeline failed can errors.As for
// it rather than parsing the message.
func (p *Pipeline[T]) Run(ctx *T) error {
	for _, s := range p.stages {
		if err := s.Run(ctx); err != nil {
			return &StageError{
				Stage:   s.Name(),
				Message: err.Error(),
				Errors:  []error{err},
			}
		}
	}
	return nil
}
