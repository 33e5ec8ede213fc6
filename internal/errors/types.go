// Package errors defines the structured error type shared by every stage of
// the asset pipeline. A PipelineError names the task and stage that failed so
// the CLI and the watch session can report exactly where a build broke.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeTool     ErrorType = "tool"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeInclude  ErrorType = "include"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeGlobFailed      = "ERR_GLOB_FAILED"
	ErrCodeReadFailed      = "ERR_READ_FAILED"
	ErrCodeWriteFailed     = "ERR_WRITE_FAILED"
	ErrCodeRemoveFailed    = "ERR_REMOVE_FAILED"
	ErrCodeToolNotFound    = "ERR_TOOL_NOT_FOUND"
	ErrCodeToolFailed      = "ERR_TOOL_FAILED"
	ErrCodeDecodeFailed    = "ERR_DECODE_FAILED"
	ErrCodeIncludeMissing  = "ERR_INCLUDE_MISSING"
	ErrCodeIncludeCycle    = "ERR_INCLUDE_CYCLE"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeStageFailed     = "ERR_STAGE_FAILED"
	ErrCodeInternalFailure = "ERR_INTERNAL"
)

// PipelineError is a structured error type with task and stage context.
type PipelineError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Task    string
	Stage   string
	Path    string
	// Output holds the captured stderr of an external tool, if any.
	Output string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Task != "" {
		parts = append(parts, "task:"+e.Task)
	}
	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		result += "\n" + out
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithTask records the task the error occurred in. An already set task is
// kept so the innermost task wins when composites re-wrap.
func (e *PipelineError) WithTask(task string) *PipelineError {
	if e.Task == "" {
		e.Task = task
	}

	return e
}

// WithStage records the chain stage the error occurred in.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	if e.Stage == "" {
		e.Stage = stage
	}

	return e
}

// WithPath adds file location information.
func (e *PipelineError) WithPath(path string) *PipelineError {
	e.Path = path

	return e
}

// WithOutput attaches captured tool output.
func (e *PipelineError) WithOutput(output string) *PipelineError {
	e.Output = output

	return e
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

// NewToolError creates an error for a failed external or in-process transformer.
func NewToolError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeTool,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIncludeError creates an HTML include resolution error.
func NewIncludeError(code, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInclude,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrap converts any error into a PipelineError, reusing the existing one
// when err already is (or wraps) a PipelineError.
func Wrap(err error, code, message string) *PipelineError {
	if err == nil {
		return nil
	}

	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	return NewInternalError(code, message, err)
}

// IsToolError checks if an error came from a transformer.
func IsToolError(err error) bool {
	return hasType(err, ErrorTypeTool)
}

// IsIOError checks if an error is filesystem-related.
func IsIOError(err error) bool {
	return hasType(err, ErrorTypeIO)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsIncludeError checks if an error came from include resolution.
func IsIncludeError(err error) bool {
	return hasType(err, ErrorTypeInclude)
}

// TaskOf returns the name of the task an error was raised in, or "".
func TaskOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Task
	}

	return ""
}

// StageOf returns the name of the stage an error was raised in, or "".
func StageOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}

	return ""
}

func hasType(err error, t ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}
