// Package errors provides structured error types for the geotweets pipeline.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across tools.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline component.
type ErrorCategory string

const (
	ErrCategoryLabel    ErrorCategory = "LABEL"
	ErrCategoryChunk    ErrorCategory = "CHUNK"
	ErrCategoryMerge    ErrorCategory = "MERGE"
	ErrCategoryFlatten  ErrorCategory = "FLATTEN"
	ErrCategoryStore    ErrorCategory = "STORE"
	ErrCategoryLegacy   ErrorCategory = "LEGACY"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Label codes
	CodeMalformedRecord   = "MALFORMED_RECORD"
	CodeUnknownStrategy   = "UNKNOWN_STRATEGY"
	CodeInvalidHashLength = "INVALID_HASH_LENGTH"

	// Chunk codes
	CodeInvalidJobCount = "INVALID_JOB_COUNT"
	CodeInputUnreadable = "INPUT_UNREADABLE"

	// Merge codes
	CodeMergeConflict = "MERGE_CONFLICT"
	CodeSourceMissing = "SOURCE_MISSING"

	// Flatten codes
	CodeInvalidGeometry = "INVALID_GEOMETRY"

	// Store codes
	CodeSchemaFailed = "SCHEMA_FAILED"
	CodeIndexFailed  = "INDEX_FAILED"

	// Legacy codes
	CodeCorruptPickle = "CORRUPT_PICKLE"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the toolkit.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only transient
// object-storage failures qualify; the local pipeline is fail-fast.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

// NewMalformedRecord reports a record that cannot be labeled or parsed.
func NewMalformedRecord(message string) *PipelineError {
	return New(ErrCategoryLabel, CodeMalformedRecord, message)
}

// IsMalformedRecord reports whether err is a malformed-record error.
func IsMalformedRecord(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Code == CodeMalformedRecord
}

// NewMergeConflict reports a destination collision detected before merging.
func NewMergeConflict(message string) *PipelineError {
	return New(ErrCategoryMerge, CodeMergeConflict, message)
}

func NewChunkError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryChunk, code, message, cause)
}

func NewStoreError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewStorageError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewLegacyError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryLegacy, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
