// Package exception provides the error types used throughout the krishi pipeline.
// It standardizes failures occurring during consolidation so that callers can
// distinguish conditions that abort the whole run from conditions that only
// skip a single store, table or view.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors forming the pipeline error taxonomy.
// PipelineError values wrap one of these so callers can classify with errors.Is.
var (
	// ErrSchemaUnavailable indicates a source store could not be opened or a
	// requested table does not exist. Aborts only that store/table.
	ErrSchemaUnavailable = errors.New("schema unavailable")
	// ErrTableCopyFailed indicates a single table could not be recreated or
	// its rows could not be copied into the warehouse.
	ErrTableCopyFailed = errors.New("table copy failed")
	// ErrViewCreationFailed indicates a synthesized view could not be created,
	// typically because it references a table skipped earlier in the run.
	ErrViewCreationFailed = errors.New("view creation failed")
)

// PipelineError is the error type produced by pipeline components.
// It holds the module where the error occurred, a message, the wrapped
// original error, and a flag indicating whether the failure is skippable
// (logged and isolated) or fatal to the whole run.
type PipelineError struct {
	// Module indicates the component where the error occurred
	// (e.g. "inspector", "classifier", "resolver", "merger", "consolidator").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// skippable indicates whether the surrounding work may continue.
	skippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewPipelineError creates a new PipelineError instance.
//
// module: The component where the error occurred.
// message: The error message.
// originalErr: The original error to wrap (may be nil).
// skippable: Whether sibling work may continue after this error.
func NewPipelineError(module, message string, originalErr error, skippable bool) *PipelineError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		skippable:   skippable,
		StackTrace:  string(buf[:n]),
	}
}

// NewPipelineErrorf creates a new skippable PipelineError with a formatted
// message, wrapping cause. Most per-table and per-view failures use this form.
func NewPipelineErrorf(module string, cause error, format string, a ...interface{}) *PipelineError {
	e := NewPipelineError(module, fmt.Sprintf(format, a...), cause, true)
	return e
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped original error, enabling use with errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	return e.OriginalErr
}

// IsSkippable reports whether sibling work may continue after this error.
func (e *PipelineError) IsSkippable() bool {
	return e.skippable
}

// IsSkippable reports whether err (or any error it wraps) is a skippable
// PipelineError. Unknown error types are treated as not skippable.
func IsSkippable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.IsSkippable()
	}
	return false
}
