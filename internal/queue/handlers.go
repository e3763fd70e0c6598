package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"knowledgebase-platform/internal/logger"
	"knowledgebase-platform/models"
	"knowledgebase-platform/services"
)

// TaskProcessor dispatches queue tasks into the services layer.
type TaskProcessor struct {
	pipeline *services.IngestionPipeline
	post     *services.SlidePostProcessor
}

func NewTaskProcessor(pipeline *services.IngestionPipeline, post *services.SlidePostProcessor) *TaskProcessor {
	return &TaskProcessor{
		pipeline: pipeline,
		post:     post,
	}
}

// Mux registers the handlers on a fresh ServeMux.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDocumentIngest, p.HandleDocumentIngest)
	mux.HandleFunc(TaskSlideImages, p.HandleSlideImages)
	return mux
}

// HandleDocumentIngest runs the ingestion pipeline for one document. The
// pipeline finalizes failed state itself; this handler only translates the
// error classification into the queue's retry decision.
func (p *TaskProcessor) HandleDocumentIngest(ctx context.Context, t *asynq.Task) error {
	var job models.IngestionJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal ingestion payload: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("processing ingestion task",
		"document_id", job.DocumentID, "mime_type", job.MimeType)

	if err := p.pipeline.Run(ctx, job); err != nil {
		if !services.IsRetryable(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	return nil
}

// HandleSlideImages runs the post-completion slide-image enrichment. Errors
// here are logged and dropped after the queue's single retry; the document is
// already completed and must stay that way.
func (p *TaskProcessor) HandleSlideImages(ctx context.Context, t *asynq.Task) error {
	var payload SlideImagesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal slide images payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := p.post.Run(ctx, payload.DocumentID, payload.EncryptedFilename); err != nil {
		logger.Warn("slide image enrichment failed",
			"document_id", payload.DocumentID, "error", err)
		return err
	}

	return nil
}
