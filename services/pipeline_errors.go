package services

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Stage identifies a pipeline stage for error classification and progress
// reporting.
type Stage string

const (
	StageValidation Stage = "validation"
	StageDownload   Stage = "downloading"
	StageExtraction Stage = "extracting"
	StageTransform  Stage = "processing"
	StageMetadata   Stage = "saving"
	StageEmbedding  Stage = "embedding"
	StageIndexing   Stage = "indexing"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// PipelineError tags a failure with the stage it occurred in and whether the
// job runner should re-attempt the whole job. The retry handler switches on
// Retryable explicitly instead of inspecting error types.
type PipelineError struct {
	Stage     Stage
	Retryable bool
	Err       error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps a transient failure (fetch, extraction timeout,
// extraction service error).
func NewRetryableError(stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, Retryable: true, Err: err}
}

// NewFatalError wraps a structural failure that retrying cannot fix
// (invalid MIME type, oversized file, oversized extracted text).
func NewFatalError(stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, Retryable: false, Err: err}
}

// IsRetryable reports whether the job runner should re-attempt the job.
// Unclassified errors default to retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// FailureStage returns the stage tag of a classified error, or StageFailed
// for unclassified ones.
func FailureStage(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return StageFailed
}

// TruncateError bounds the human-readable message stored on the document
// record. The cut lands on a rune boundary so the result stays valid UTF-8.
func TruncateError(err error, maxLen int) string {
	msg := err.Error()
	if len(msg) <= maxLen {
		return msg
	}

	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}
