package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	err := New(ErrCategoryStorage, CodeUploadFailed, "upload failed")
	expected := "[STORAGE:UPLOAD_FAILED] upload failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryChunk, CodeInputUnreadable, "bad input", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestPipelineError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeUploadFailed, "first")
	err2 := New(ErrCategoryStorage, CodeUploadFailed, "second")
	err3 := New(ErrCategoryStorage, CodeDownloadFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryLabel, CodeMalformedRecord, false},
		{ErrCategoryMerge, CodeMergeConflict, false},
		{ErrCategoryChunk, CodeInputUnreadable, false},
		{ErrCategoryLegacy, CodeCorruptPickle, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryMerge, CodeMergeConflict, "collision")
	if GetCategory(err) != ErrCategoryMerge {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryMerge)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-PipelineError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryLabel, CodeMalformedRecord, "no created_at")
	if GetCode(err) != CodeMalformedRecord {
		t.Errorf("got %q, want %q", GetCode(err), CodeMalformedRecord)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-PipelineError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryLabel, CodeMalformedRecord, "bad record")
	detailed := err.WithDetails(map[string]interface{}{"field": "created_at"})

	if detailed.Details["field"] != "created_at" {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	m := NewMalformedRecord("missing user id")
	if m.Category != ErrCategoryLabel || m.Code != CodeMalformedRecord {
		t.Error("NewMalformedRecord mismatch")
	}
	if !IsMalformedRecord(fmt.Errorf("wrapped: %w", m)) {
		t.Error("IsMalformedRecord should see through wrapping")
	}

	mc := NewMergeConflict("2021-05-01.json.gz already present")
	if mc.Category != ErrCategoryMerge || mc.Code != CodeMergeConflict {
		t.Error("NewMergeConflict mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	c := NewChunkError(CodeInputUnreadable, "gzip corrupt", cause)
	if c.Category != ErrCategoryChunk {
		t.Error("NewChunkError mismatch")
	}

	l := NewLegacyError(CodeCorruptPickle, "bad blob", cause)
	if l.Category != ErrCategoryLegacy {
		t.Error("NewLegacyError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
