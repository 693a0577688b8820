package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed transcription job.
type Kind string

const (
	MissingInput   Kind = "MissingInput"
	FetchFailed    Kind = "FetchFailed"
	PipelineError  Kind = "PipelineError"
	OutputMissing  Kind = "OutputMissing"
	UnhandledError Kind = "UnhandledError"
)

// Status maps a kind to the HTTP status returned to the caller.
// Faults attributable to the caller are 400, everything else is 500.
func (k Kind) Status() int {
	switch k {
	case MissingInput, FetchFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a job failure with its kind and a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind carried by err, or UnhandledError for anything
// that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnhandledError
}

// ProcessError represents a failure in an external process
type ProcessError struct {
	Tool     string // "python3", "magenta"
	Stage    string // "transcription"
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed at %s (exit %d): %s", e.Tool, e.Stage, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed at %s (exit %d)", e.Tool, e.Stage, e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// NewProcessError creates a ProcessError
func NewProcessError(tool, stage string, exitCode int, stderr string, cause error) *ProcessError {
	return &ProcessError{
		Tool:     tool,
		Stage:    stage,
		ExitCode: exitCode,
		Stderr:   stderr,
		Cause:    cause,
	}
}
