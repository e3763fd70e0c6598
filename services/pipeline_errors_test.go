package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestIsRetryable(t *testing.T) {
	retryable := NewRetryableError(StageDownload, fmt.Errorf("connection refused"))
	if !IsRetryable(retryable) {
		t.Error("retryable error classified as fatal")
	}

	fatal := NewFatalError(StageValidation, fmt.Errorf("unsupported file type"))
	if IsRetryable(fatal) {
		t.Error("fatal error classified as retryable")
	}

	// Unclassified errors default to retryable
	if !IsRetryable(fmt.Errorf("something unexpected")) {
		t.Error("unclassified error must default to retryable")
	}
}

func TestIsRetryableWrapped(t *testing.T) {
	inner := NewFatalError(StageExtraction, fmt.Errorf("text too large"))
	wrapped := fmt.Errorf("job aborted: %w", inner)

	if IsRetryable(wrapped) {
		t.Error("classification lost through wrapping")
	}
	if FailureStage(wrapped) != StageExtraction {
		t.Errorf("stage lost through wrapping: %s", FailureStage(wrapped))
	}
}

func TestFailureStage(t *testing.T) {
	err := NewRetryableError(StageIndexing, fmt.Errorf("bulk write failed"))
	if got := FailureStage(err); got != StageIndexing {
		t.Errorf("expected %s, got %s", StageIndexing, got)
	}

	if got := FailureStage(errors.New("plain")); got != StageFailed {
		t.Errorf("unclassified error should report %s, got %s", StageFailed, got)
	}
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewRetryableError(StageDownload, cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if msg := err.Error(); !strings.Contains(msg, "downloading") || !strings.Contains(msg, "root cause") {
		t.Errorf("message missing stage or cause: %q", msg)
	}
}

func TestTruncateError(t *testing.T) {
	short := fmt.Errorf("short message")
	if got := TruncateError(short, 500); got != "short message" {
		t.Errorf("short message altered: %q", got)
	}

	long := fmt.Errorf("%s", strings.Repeat("x", 600))
	got := TruncateError(long, 500)
	if len(got) != 500 {
		t.Fatalf("expected 500 chars, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated message missing ellipsis")
	}
}

func TestTruncateErrorRuneBoundary(t *testing.T) {
	// Every rune is 3 bytes, so a byte-index cut would land mid-rune
	long := fmt.Errorf("%s", strings.Repeat("文", 200))

	for _, maxLen := range []int{10, 11, 12, 500} {
		got := TruncateError(long, maxLen)
		if len(got) > maxLen {
			t.Errorf("maxLen %d: result is %d bytes", maxLen, len(got))
		}
		if !utf8.ValidString(got) {
			t.Errorf("maxLen %d: truncation produced invalid UTF-8: %q", maxLen, got)
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("maxLen %d: missing ellipsis: %q", maxLen, got)
		}
	}
}
