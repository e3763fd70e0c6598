package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"knowledgebase-platform/models"
)

func TestIngestTaskID(t *testing.T) {
	if got := IngestTaskID("abc-123"); got != "ingest:document:abc-123" {
		t.Errorf("unexpected task id: %q", got)
	}

	// Same document, same id: the queue dedups on this
	if IngestTaskID("doc-1") != IngestTaskID("doc-1") {
		t.Error("task id must be deterministic per document")
	}
	if IngestTaskID("doc-1") == IngestTaskID("doc-2") {
		t.Error("different documents must get different task ids")
	}
}

func TestNewDocumentIngestTask(t *testing.T) {
	job := models.IngestionJob{
		DocumentID:        "doc-1",
		UserID:            "user-1",
		EncryptedFilename: "documents/user-1/doc-1.pdf",
		MimeType:          "application/pdf",
		FileSizeBytes:     2048,
	}

	task, err := NewDocumentIngestTask(job, 3, 10*time.Minute)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}

	if task.Type() != TaskDocumentIngest {
		t.Errorf("task type %q, want %q", task.Type(), TaskDocumentIngest)
	}

	var decoded models.IngestionJob
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded != job {
		t.Errorf("payload round-trip mismatch: %+v", decoded)
	}
}

func TestNewSlideImagesTask(t *testing.T) {
	task, err := NewSlideImagesTask(SlideImagesPayload{
		DocumentID:        "doc-1",
		UserID:            "user-1",
		EncryptedFilename: "documents/user-1/deck.pptx",
	}, 10*time.Minute)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}

	if task.Type() != TaskSlideImages {
		t.Errorf("task type %q, want %q", task.Type(), TaskSlideImages)
	}

	var decoded SlideImagesPayload
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.DocumentID != "doc-1" {
		t.Errorf("payload round-trip mismatch: %+v", decoded)
	}
}

func TestNilClientDegradesGracefully(t *testing.T) {
	var c *Client

	info, err := c.EnqueueIngestion(context.Background(), models.IngestionJob{DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("nil client must not error on enqueue: %v", err)
	}
	if info != nil {
		t.Error("nil client must return no task info")
	}

	if err := c.Close(); err != nil {
		t.Errorf("nil client close: %v", err)
	}
}
