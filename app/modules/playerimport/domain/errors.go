package importdomain

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of pipeline error codes surfaced to callers.
type ErrorCode string

const (
	CodeBatchRowLimit          ErrorCode = "BATCH_ROW_LIMIT"
	CodeParseError             ErrorCode = "PARSE_ERROR"
	CodeStorageError           ErrorCode = "STORAGE_ERROR"
	CodeMaxAttemptsExceeded    ErrorCode = "MAX_ATTEMPTS_EXCEEDED"
	CodeStateConflict          ErrorCode = "STATE_CONFLICT"
	CodeIdempotencyKeyConflict ErrorCode = "IDEMPOTENCY_KEY_CONFLICT"
)

var explanations = map[ErrorCode]string{
	CodeBatchRowLimit:          "The file has more rows or more bytes than this deployment accepts. Split it into smaller files and start a new import for each.",
	CodeParseError:             "The file could not be read as a spreadsheet. Check that it is a valid CSV or XLSX export and that every mapped column header is present.",
	CodeStorageError:           "The uploaded file could not be read from storage. The import will be retried automatically.",
	CodeMaxAttemptsExceeded:    "The file could not be processed after repeated attempts. Start a new import with the same file.",
	CodeStateConflict:          "The import is not in a state that allows this action. Refresh the import to see its current status.",
	CodeIdempotencyKeyConflict: "This request key was already used for a different import. Start the import again with a new request.",
}

// Explanation returns the operator-facing description of the code.
func (c ErrorCode) Explanation() string {
	if e, ok := explanations[c]; ok {
		return e
	}
	return string(c)
}

// Valid reports whether c belongs to the closed set.
func (c ErrorCode) Valid() bool {
	_, ok := explanations[c]
	return ok
}

func (c ErrorCode) String() string { return string(c) }

// ErrBatchNotFound is returned when no batch exists for an id.
var ErrBatchNotFound = errors.New("import batch not found")

// PipelineError is a pipeline failure tagged with its error code.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewPipelineError builds a PipelineError. err may be nil.
func NewPipelineError(code ErrorCode, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// CodeOf extracts the pipeline error code from err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// StateConflict builds a STATE_CONFLICT error describing the rejected transition.
func StateConflict(current, want BatchStatus) *PipelineError {
	return NewPipelineError(CodeStateConflict, fmt.Sprintf("batch is %s, expected %s", current, want), nil)
}

// ValidationError rejects a request before it enters the pipeline.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
