// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Sage.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Sage errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the caller supplied invalid input.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeConfig indicates a configuration problem: a missing planner
	// credential, a missing or malformed expert descriptor, or a descriptor
	// that violates its schema.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeConnection indicates the wrapped server could not be reached or
	// did not complete its handshake.
	CodeConnection ErrorCode = "CONNECTION_ERROR"

	// CodePlanner indicates the planner call failed or returned output that
	// could not be parsed into the expected shape.
	CodePlanner ErrorCode = "PLANNER_ERROR"

	// CodeInvocation indicates a single planned tool call failed at the
	// wrapped server. Invocation errors are captured per call and never
	// abort sibling calls.
	CodeInvocation ErrorCode = "INVOCATION_ERROR"
)

// SageError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type SageError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *SageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *SageError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *SageError) MarshalJSON() ([]byte, error) {
	type Alias SageError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new SageError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *SageError {
	return &SageError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *SageError) WithContext(key string, value interface{}) *SageError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *SageError) WithRecoverable(recoverable bool) *SageError {
	e.Recoverable = recoverable
	return e
}

// AsSageError attempts to convert an error to a SageError.
// Returns the error as SageError if it is one, or wraps it otherwise.
func AsSageError(err error) *SageError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SageError); ok {
		return se
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the error code of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	se := AsSageError(err)
	if se == nil {
		return ""
	}
	return se.Code
}
