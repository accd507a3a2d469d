// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testContext struct {
	trail []string
}

type stubStage struct {
	name string
	err  error
	ran  bool
}

func (s *stubStage) Name() string { return s.name }
func (s *stubStage) Run(ctx *testContext) error {
	s.ran = true
	ctx.trail = append(ctx.trail, s.name)
	return s.err
}

func TestPipelineRunsAllStages(t *testing.T) {
	s1 := &stubStage{name: "first"}
	s2 := &stubStage{name: "second"}
	s3 := &stubStage{name: "third"}

	p := New[testContext](s1, s2, s3)
	ctx := &testContext{}
	err := p.Run(ctx)

	require.NoError(t, err)
	assert.True(t, s1.ran)
	assert.True(t, s2.ran)
	assert.True(t, s3.ran)
	assert.Equal(t, []string{"first", "second", "third"}, ctx.trail)
}

func TestPipelineStopsOnFirstError(t *testing.T) {
	s1 := &stubStage{name: "first"}
	s2 := &stubStage{name: "second", err: errors.New("stage 2 failed")}
	s3 := &stubStage{name: "third"}

	p := New[testContext](s1, s2, s3)
	err := p.Run(&testContext{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage 2 failed")
	assert.True(t, s1.ran)
	assert.True(t, s2.ran)
	assert.False(t, s3.ran, "third stage should not run after error")

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "second", stageErr.Stage)
	assert.Equal(t, "stage 2 failed", errors.Unwrap(err).Error())
}

func TestPipelineEmptyPipeline(t *testing.T) {
	p := New[testContext]()
	err := p.Run(&testContext{})
	require.NoError(t, err)
}

func TestStageErrorMessage(t *testing.T) {
	se := &StageError{
		Stage:   "lookupCache",
		Message: "cache lookup failed",
		Errors:  []error{errors.New("a"), errors.New("b")},
	}
	assert.Contains(t, se.Error(), "2 error(s)")
}
