/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"testing"

	"gotest.tools/assert"
)

func TestReasonForError(t *testing.T) {
	assert.Equal(t, ReasonForError(NewBadRequest("x")), BadRequest)
	assert.Equal(t, ReasonForError(NewJobNotFound(1)), JobNotFound)
	assert.Equal(t, ReasonForError(fmt.Errorf("plain")), "")
	assert.Equal(t, ReasonForError(fmt.Errorf("wrapped: %w", NewGpuNotFound("g"))), GpuNotFound)
}

func TestIsNotFound(t *testing.T) {
	assert.Assert(t, IsNotFound(NewJobNotFound(1)))
	assert.Assert(t, IsNotFound(NewAgentNotFound("h1")))
	assert.Assert(t, IsNotFound(NewGpuNotFound("g")))
	assert.Assert(t, IsNotFound(NewNotFoundWithMessage("x")))
	assert.Assert(t, !IsNotFound(NewBadRequest("x")))
	assert.Assert(t, !IsNotFound(fmt.Errorf("plain")))
}

func TestIgnoreNotFound(t *testing.T) {
	assert.NilError(t, IgnoreNotFound(nil))
	assert.NilError(t, IgnoreNotFound(NewJobNotFound(1)))
	assert.Assert(t, IgnoreNotFound(NewBadRequest("x")) != nil)
}

func TestIsNebula(t *testing.T) {
	assert.Assert(t, IsNebula(NewInternalError("x")))
	assert.Assert(t, !IsNebula(fmt.Errorf("plain")))
}
