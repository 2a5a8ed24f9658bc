package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type for qmd.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_402_DOCUMENT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// DocumentNotFound creates a document lookup failure for the given reference.
func DocumentNotFound(reference string) *Error {
	return New(ErrCodeDocumentNotFound,
		fmt.Sprintf("document not found: %s", reference), nil).
		WithDetail("reference", reference)
}

// VectorIndexUnavailable indicates vector search was attempted before any
// embeddings exist for the requested model.
func VectorIndexUnavailable(model string) *Error {
	return New(ErrCodeVectorIndexUnavailable,
		fmt.Sprintf("no embeddings indexed for model %q", model), nil).
		WithDetail("model", model).
		WithSuggestion("run 'qmd embed' to build the vector index")
}

// IndexingCancelled indicates a cancellation token was observed mid-run.
// This maps to the Cancelled job state, not Failed.
func IndexingCancelled(collection string) *Error {
	return New(ErrCodeIndexingCancelled,
		fmt.Sprintf("indexing cancelled for collection %q", collection), nil).
		WithDetail("collection", collection)
}

// IndexingIOError indicates a file read failure during indexing.
// Fatal to the current run; documents committed so far remain committed.
func IndexingIOError(path string, cause error) *Error {
	return New(ErrCodeFileRead,
		fmt.Sprintf("failed to read %s", path), cause).
		WithDetail("path", path)
}

// StorageConstraint indicates an invariant breach in the store. Treated as a
// programming or data-corruption error and never recovered.
func StorageConstraint(message string, cause error) *Error {
	return New(ErrCodeStorageConstraint, message, cause)
}

// IsNotFound reports whether err is a document or collection lookup failure.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeDocumentNotFound || e.Code == ErrCodeCollectionNotFound
	}
	return false
}

// IsCancelled reports whether err is an indexing cancellation.
func IsCancelled(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeIndexingCancelled
	}
	return false
}

// IsVectorUnavailable reports whether err means the vector index is not built.
func IsVectorUnavailable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeVectorIndexUnavailable
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCode extracts the error code from an Error.
// Returns empty string if not an Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
