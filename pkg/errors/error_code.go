/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const NebulaPrefix = "Nebula."

/*
   5-digit Error Code Convention: [xx][yyy]
   [xx] Business ID (00–99), used to distinguish errors from different business interfaces.
   00: General errors
   01: Job-related errors
   02: GPU-related errors
   03: Agent-related errors
   [yyy] Error code range (000–999)
*/

// public: 00xxx
const (
	InternalError         = NebulaPrefix + "00001"
	BadRequest            = NebulaPrefix + "00002"
	NotFound              = NebulaPrefix + "00003"
	RequestEntityTooLarge = NebulaPrefix + "00004"
)

// job: 01xxx
const (
	JobNotFound = NebulaPrefix + "01001"
)

// gpu: 02xxx
const (
	GpuNotFound = NebulaPrefix + "02001"
)

// agent: 03xxx
const (
	AgentNotFound = NebulaPrefix + "03001"
)

// StatusError is an error that carries an HTTP status and a nebula error code.
type StatusError struct {
	HttpCode int
	Reason   string
	Message  string
}

func (e *StatusError) Error() string {
	return e.Message
}

// ReasonForError returns the nebula error code of err, or "" for foreign errors.
func ReasonForError(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Reason
	}
	return ""
}

// IsNebula returns true if the specified error carries a nebula error code.
func IsNebula(err error) bool {
	return strings.HasPrefix(ReasonForError(err), NebulaPrefix)
}

func IsBadRequest(err error) bool {
	return ReasonForError(err) == BadRequest
}

func IsInternal(err error) bool {
	return ReasonForError(err) == InternalError
}

func IsNotFound(err error) bool {
	switch ReasonForError(err) {
	case NotFound, JobNotFound, GpuNotFound, AgentNotFound:
		return true
	}
	return false
}

func IgnoreNotFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

func NewBadRequest(message string) *StatusError {
	return &StatusError{
		HttpCode: http.StatusBadRequest,
		Reason:   BadRequest,
		Message:  fmt.Sprintf("Bad request. %s", message),
	}
}

func NewInternalError(message string) *StatusError {
	return &StatusError{
		HttpCode: http.StatusInternalServerError,
		Reason:   InternalError,
		Message:  fmt.Sprintf("Internal error. %s", message),
	}
}

func NewNotFoundWithMessage(message string) *StatusError {
	return &StatusError{
		HttpCode: http.StatusNotFound,
		Reason:   NotFound,
		Message:  message,
	}
}

func NewJobNotFound(jobId int64) *StatusError {
	return &StatusError{
		HttpCode: http.StatusNotFound,
		Reason:   JobNotFound,
		Message:  fmt.Sprintf("job %d not found.", jobId),
	}
}

func NewGpuNotFound(gpuId string) *StatusError {
	return &StatusError{
		HttpCode: http.StatusBadRequest,
		Reason:   GpuNotFound,
		Message:  fmt.Sprintf("GPU %s not found.", gpuId),
	}
}

func NewAgentNotFound(name string) *StatusError {
	return &StatusError{
		HttpCode: http.StatusNotFound,
		Reason:   AgentNotFound,
		Message:  fmt.Sprintf("agent %s not found.", name),
	}
}

func NewRequestEntityTooLargeError(message string) *StatusError {
	return &StatusError{
		HttpCode: http.StatusRequestEntityTooLarge,
		Reason:   RequestEntityTooLarge,
		Message:  fmt.Sprintf("Request entity is too large: %s", message),
	}
}
