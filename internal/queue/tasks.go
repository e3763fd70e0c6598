package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"knowledgebase-platform/internal/logger"
	"knowledgebase-platform/models"
)

const (
	TaskDocumentIngest = "document:ingest"
	TaskSlideImages    = "document:slide_images"

	// QueueIngestion carries the main pipeline jobs, QueueBackground the
	// post-completion enrichment tasks. Background work never competes with
	// ingestion for more than its weight share.
	QueueIngestion  = "ingestion"
	QueueBackground = "background"
)

// SlideImagesPayload is the payload of the background slide-image task.
type SlideImagesPayload struct {
	DocumentID        string `json:"document_id"`
	UserID            string `json:"user_id"`
	EncryptedFilename string `json:"encrypted_filename"`
}

// IngestTaskID derives the dedup key for a document's ingestion job. A second
// enqueue for the same document while one is in flight conflicts on this ID
// instead of spawning a concurrent duplicate.
func IngestTaskID(documentID string) string {
	return "ingest:document:" + documentID
}

// NewDocumentIngestTask builds the ingestion task for one uploaded document.
func NewDocumentIngestTask(job models.IngestionJob, maxRetries int, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentIngest,
		payload,
		asynq.TaskID(IngestTaskID(job.DocumentID)),
		asynq.MaxRetry(maxRetries),
		asynq.Timeout(timeout),
		asynq.Queue(QueueIngestion),
	), nil
}

// NewSlideImagesTask builds the post-completion slide-image extraction task.
// It runs on the low-priority queue and is never retried aggressively; a
// failure here only costs the enrichment, not the document.
func NewSlideImagesTask(p SlideImagesPayload, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskSlideImages,
		payload,
		asynq.MaxRetry(1),
		asynq.Timeout(timeout),
		asynq.Queue(QueueBackground),
	), nil
}

// Client wraps the asynq client with the degradation policy the callers rely
// on: a nil or unreachable queue turns enqueueing into a no-op instead of an
// error surfaced to the uploader.
type Client struct {
	client     *asynq.Client
	maxRetries int
	jobTimeout time.Duration
}

func NewClient(redisOpt asynq.RedisConnOpt, maxRetries int, jobTimeout time.Duration) *Client {
	return &Client{
		client:     asynq.NewClient(redisOpt),
		maxRetries: maxRetries,
		jobTimeout: jobTimeout,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueIngestion submits an ingestion job. Returns the task info, or nil
// (without error) when the queue is unavailable or a job for this document is
// already in flight.
func (c *Client) EnqueueIngestion(ctx context.Context, job models.IngestionJob) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		logger.Warn("queue unavailable, skipping ingestion enqueue", "document_id", job.DocumentID)
		return nil, nil
	}

	task, err := NewDocumentIngestTask(job, c.maxRetries, c.jobTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to build ingestion task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			logger.Info("ingestion already queued for document", "document_id", job.DocumentID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to enqueue ingestion task: %w", err)
	}

	return info, nil
}

// EnqueueSlideImages submits the background enrichment task for a
// presentation document that already completed ingestion.
func (c *Client) EnqueueSlideImages(ctx context.Context, documentID, userID, encryptedFilename string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("queue unavailable")
	}

	task, err := NewSlideImagesTask(SlideImagesPayload{
		DocumentID:        documentID,
		UserID:            userID,
		EncryptedFilename: encryptedFilename,
	}, c.jobTimeout)
	if err != nil {
		return fmt.Errorf("failed to build slide images task: %w", err)
	}

	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue slide images task: %w", err)
	}

	return nil
}
