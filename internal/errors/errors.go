package errors

import (
	"fmt"
	"time"
)

// ErrorType discriminates error families for routing and RPC mapping.
type ErrorType string

const (
	ErrorTypeParse        ErrorType = "parse"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeLock         ErrorType = "lock"
	ErrorTypeSchema       ErrorType = "schema"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidQuery ErrorType = "invalid_query"
	ErrorTypeInternal     ErrorType = "internal"
)

// RPC error codes surfaced on tool responses.
const (
	CodeNotFound        = "NotFound"
	CodeInvalidArgument = "InvalidArgument"
	CodeLocked          = "Locked"
	CodeParseFailure    = "ParseFailure"
	CodeInternal        = "Internal"
)

// Code maps an error type to its RPC code.
func (t ErrorType) Code() string {
	switch t {
	case ErrorTypeNotFound:
		return CodeNotFound
	case ErrorTypeInvalidQuery:
		return CodeInvalidArgument
	case ErrorTypeLock:
		return CodeLocked
	case ErrorTypeParse:
		return CodeParseFailure
	default:
		return CodeInternal
	}
}

// IndexError is an error raised while indexing a specific file.
type IndexError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewIndexError creates an indexing error with context.
func NewIndexError(t ErrorType, op, path string, err error) *IndexError {
	return &IndexError{
		Type:       t,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *IndexError) Unwrap() error {
	return e.Underlying
}

// Recoverable reports whether the file should be retried on the next
// event. Parse failures are terminal for the current content; IO
// failures are not.
func (e *IndexError) Recoverable() bool {
	return e.Type == ErrorTypeIO
}

// QueryError is returned to tool callers; it never aborts a mount.
type QueryError struct {
	Type    ErrorType
	Message string
}

// NewQueryError creates a caller-facing query error.
func NewQueryError(t ErrorType, format string, args ...interface{}) *QueryError {
	return &QueryError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type.Code(), e.Message)
}

// SchemaError aborts loading one mount's on-disk index.
type SchemaError struct {
	Path    string
	Found   string
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("unsupported index format %q in %s: %s (rebuild with `codeix build`)",
		e.Found, e.Path, e.Message)
}
