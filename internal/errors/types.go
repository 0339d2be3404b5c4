// Package errors defines the structured error types used across the asset
// pipeline. Every per-event failure is wrapped in a PipelineError so callers
// can log the path and cause together and classify the failure.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig  ErrorType = "config"
	ErrorTypeCompile ErrorType = "compile"
	ErrorTypeIO      ErrorType = "io"
)

// Error codes.
const (
	CodeMissingFlag   = "ERR_MISSING_FLAG"
	CodeInvalidValue  = "ERR_INVALID_VALUE"
	CodeCompileFailed = "ERR_COMPILE_FAILED"
	CodeWriteFailed   = "ERR_WRITE_FAILED"
	CodeRemoveFailed  = "ERR_REMOVE_FAILED"
	CodeReadFailed    = "ERR_READ_FAILED"
)

// PipelineError is a structured error type with context.
type PipelineError struct {
	Type    ErrorType
	Code    string
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithPath attaches the file the error refers to.
func (e *PipelineError) WithPath(path string) *PipelineError {
	e.Path = path

	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewCompileError creates a compile error for the given source file.
func NewCompileError(path string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeCompile,
		Code:    CodeCompileFailed,
		Message: "compilation failed",
		Path:    path,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCompileError checks if an error came from a compiler.
func IsCompileError(err error) bool {
	return hasType(err, ErrorTypeCompile)
}

// IsIOError checks if an error is I/O-related.
func IsIOError(err error) bool {
	return hasType(err, ErrorTypeIO)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return len(ve) > 0
	}

	return hasType(err, ErrorTypeConfig)
}

func hasType(err error, typ ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == typ
	}

	return false
}

// ValidationErrors collects every failure found while validating a
// configuration. It is an error only when non-empty.
type ValidationErrors []*PipelineError

// Error joins the individual messages, one per line.
func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, err := range v {
		msgs = append(msgs, err.Message)
	}

	return strings.Join(msgs, "\n")
}

// Add appends a configuration error.
func (v *ValidationErrors) Add(code, message string) {
	*v = append(*v, NewConfigError(code, message))
}

// Err returns nil when no failures were collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}

	return v
}
