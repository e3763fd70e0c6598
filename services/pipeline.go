package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"knowledgebase-platform/internal/config"
	"knowledgebase-platform/internal/logger"
	"knowledgebase-platform/internal/telemetry"
	"knowledgebase-platform/models"
)

// errorMessageMaxLen bounds the failure message stored on the document record.
const errorMessageMaxLen = 500

// ObjectFetcher is the slice of the object store the pipeline needs.
type ObjectFetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	Store(ctx context.Context, path string, data []byte, contentType string) error
}

// DocumentStore is the persistence surface the pipeline writes through.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	SetCompleted(ctx context.Context, id string) error
	SetFailed(ctx context.Context, id, message string) error
	UpsertMetadata(ctx context.Context, meta *models.DocumentMetadata) error
	SetRenderableContent(ctx context.Context, id, objectPath string) error
	SetEmbeddingStats(ctx context.Context, id string, chunksCount int) error
}

// SlideImageEnqueuer hands the post-completion enrichment task to the
// background queue.
type SlideImageEnqueuer interface {
	EnqueueSlideImages(ctx context.Context, documentID, userID, encryptedFilename string) error
}

// IngestionPipeline runs the whole ingestion job for one document:
// validate -> fetch -> extract -> parallel transforms -> metadata ->
// chunk/embed/index -> finalize. All collaborators are injected at
// construction; there is no lazily-initialized global state.
type IngestionPipeline struct {
	cfg        *config.Config
	store      DocumentStore
	objects    ObjectFetcher
	extractor  TextExtractor
	markdown   MarkdownConverter
	converter  PDFConverter
	slides     SlideExtractor
	chunker    *Chunker
	embedder   *ChunkEmbedder
	index      VectorIndex
	progress   ProgressNotifier
	background SlideImageEnqueuer
	metrics    *telemetry.Metrics // optional

	allowedTypes map[string]bool
}

func NewIngestionPipeline(
	cfg *config.Config,
	store DocumentStore,
	objects ObjectFetcher,
	extractor TextExtractor,
	markdown MarkdownConverter,
	converter PDFConverter,
	slides SlideExtractor,
	embedder Embedder,
	index VectorIndex,
	progress ProgressNotifier,
	background SlideImageEnqueuer,
	metrics *telemetry.Metrics,
) *IngestionPipeline {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[t] = true
	}

	return &IngestionPipeline{
		cfg:          cfg,
		store:        store,
		objects:      objects,
		extractor:    extractor,
		markdown:     markdown,
		converter:    converter,
		slides:       slides,
		chunker:      NewChunker(cfg.ChunkMaxWords, cfg.ChunkOverlapSentences),
		embedder:     NewChunkEmbedder(embedder, cfg.EmbeddingMaxMagnitude),
		index:        index,
		progress:     progress,
		background:   background,
		metrics:      metrics,
		allowedTypes: allowed,
	}
}

// Run executes one ingestion job. On failure it finalizes the document as
// failed (every attempt, so the UI tracks mid-retry state) and returns the
// classified error for the job runner's retry decision.
func (p *IngestionPipeline) Run(ctx context.Context, job models.IngestionJob) error {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "pipeline.run")
	span.SetAttributes(attribute.String("document.id", job.DocumentID))
	defer span.End()

	start := time.Now()
	err := p.run(ctx, job)
	if err != nil {
		p.finalizeFailure(ctx, job, err)
	}

	if p.metrics != nil {
		status := models.StatusCompleted
		if err != nil {
			status = models.StatusFailed
		}
		p.metrics.RecordDocumentProcessed(status, job.MimeType)
		p.metrics.RecordStageDuration("total", time.Since(start).Seconds())
	}
	return err
}

func (p *IngestionPipeline) observeStage(stage Stage, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordStageDuration(string(stage), time.Since(start).Seconds())
	}
}

func (p *IngestionPipeline) run(ctx context.Context, job models.IngestionJob) error {
	// Stage 1: validation, before any expensive work
	p.progress.Notify(ctx, job.UserID, job.DocumentID, StageValidation, "Validating file", 5)
	if err := p.validate(job); err != nil {
		return err
	}

	// Stage 2: fetch raw bytes from the object store
	p.progress.Notify(ctx, job.UserID, job.DocumentID, StageDownload, "Downloading file", 15)
	data, err := p.objects.Fetch(ctx, job.EncryptedFilename)
	if err != nil {
		return NewRetryableError(StageDownload, err)
	}

	// Stage 3: text extraction under its own hard timeout
	p.progress.Notify(ctx, job.UserID, job.DocumentID, StageExtraction, "Extracting text", 35)
	extractStart := time.Now()
	extraction, err := p.extract(ctx, data, job.MimeType)
	if err != nil {
		return err
	}
	p.observeStage(StageExtraction, extractStart)

	// Stage 4: parallel transforms, each best-effort
	p.progress.Notify(ctx, job.UserID, job.DocumentID, StageTransform, "Processing document", 50)
	transformStart := time.Now()
	outcomes := p.runTransforms(ctx, job, data)
	p.observeStage(StageTransform, transformStart)

	// Stage 5: persist whatever extraction + transforms produced
	p.progress.Notify(ctx, job.UserID, job.DocumentID, StageMetadata, "Saving metadata", 65)
	if err := p.writeMetadata(ctx, job, extraction, outcomes); err != nil {
		return NewRetryableError(StageMetadata, err)
	}

	// Stage 6: chunk, embed, index - only when there is enough text
	if len(extraction.Text) >= p.cfg.MinEmbeddingChars {
		p.progress.Notify(ctx, job.UserID, job.DocumentID, StageEmbedding, "Generating embeddings", 80)
		embedStart := time.Now()
		if err := p.embedAndIndex(ctx, job, extraction.Text); err != nil {
			return err
		}
		p.observeStage(StageEmbedding, embedStart)
	} else {
		logger.Info("text below embedding threshold, skipping embeddings",
			"document_id", job.DocumentID, "chars", len(extraction.Text))
	}

	// Stage 7: finalize
	if err := p.store.SetCompleted(ctx, job.DocumentID); err != nil {
		return NewRetryableError(StageMetadata, err)
	}
	p.progress.Notify(ctx, job.UserID, job.DocumentID, StageCompleted, "Processing complete", 100)

	// Presentations get slide images extracted off the critical path, after
	// the job has already reported success.
	if IsPresentation(job.MimeType) && p.background != nil {
		if err := p.background.EnqueueSlideImages(ctx, job.DocumentID, job.UserID, job.EncryptedFilename); err != nil {
			logger.Warn("failed to enqueue slide image extraction",
				"document_id", job.DocumentID, "error", err)
		}
	}

	return nil
}

// validate fails fast on unsupported MIME types and oversized files. The
// file itself is invalid, so retrying changes nothing.
func (p *IngestionPipeline) validate(job models.IngestionJob) error {
	if !p.allowedTypes[job.MimeType] {
		return NewFatalError(StageValidation,
			fmt.Errorf("unsupported file type: %s", job.MimeType))
	}
	if job.FileSizeBytes > p.cfg.MaxFileSize {
		return NewFatalError(StageValidation,
			fmt.Errorf("file size %d exceeds maximum %d bytes", job.FileSizeBytes, p.cfg.MaxFileSize))
	}
	return nil
}

// extract runs the extractor under the configured wall-clock timeout,
// independent of any timeout inside the extraction implementation.
func (p *IngestionPipeline) extract(ctx context.Context, data []byte, mimeType string) (*models.ExtractionResult, error) {
	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.ExtractionTimeout)
	defer cancel()

	result, err := p.extractor.Extract(extractCtx, data, mimeType)
	if err != nil {
		return nil, NewRetryableError(StageExtraction, err)
	}

	// Structurally too large is not transient: retrying re-extracts the same
	// oversized text.
	if len(result.Text) > p.cfg.MaxExtractedChars {
		return nil, NewFatalError(StageExtraction,
			fmt.Errorf("extracted text %d chars exceeds maximum %d", len(result.Text), p.cfg.MaxExtractedChars))
	}

	return result, nil
}

// transformOutcomes collects the parallel transform group results. Each slot
// is independent; a failed sub-task leaves its slot zero-valued.
type transformOutcomes struct {
	markdown         *MarkdownResult
	convertedPDFPath string
	slides           *SlideExtractionResult
}

// runTransforms scatters the three sub-tasks and gathers all outcomes. No
// sub-task failure propagates to the job or cancels a sibling.
func (p *IngestionPipeline) runTransforms(ctx context.Context, job models.IngestionJob, data []byte) transformOutcomes {
	var (
		wg       sync.WaitGroup
		outcomes transformOutcomes
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		result, err := p.markdown.Convert(ctx, data, job.MimeType, job.EncryptedFilename, job.DocumentID)
		if err != nil {
			logger.Warn("markdown conversion failed", "document_id", job.DocumentID, "error", err)
			return
		}
		outcomes.markdown = result
	}()

	if IsWordDocument(job.MimeType) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path, err := p.convertToPDF(ctx, job, data)
			if err != nil {
				logger.Warn("pdf pre-conversion failed", "document_id", job.DocumentID, "error", err)
				return
			}
			outcomes.convertedPDFPath = path
		}()
	}

	if IsPresentation(job.MimeType) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.extractSlides(ctx, job, data)
			if err != nil {
				logger.Warn("slide extraction failed", "document_id", job.DocumentID, "error", err)
				return
			}
			outcomes.slides = result
		}()
	}

	wg.Wait()
	return outcomes
}

// convertToPDF writes the source to scratch, converts it, uploads the PDF
// under a derived path, and cleans up both scratch files.
func (p *IngestionPipeline) convertToPDF(ctx context.Context, job models.IngestionJob, data []byte) (string, error) {
	scratchPath := filepath.Join(p.cfg.ScratchDir, uuid.NewString()+ExtensionForMime(job.MimeType))
	if err := os.WriteFile(scratchPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	defer os.Remove(scratchPath)

	result, err := p.converter.Convert(ctx, scratchPath, p.cfg.ScratchDir)
	if err != nil {
		return "", err
	}
	defer os.Remove(result.PDFPath)

	pdfData, err := os.ReadFile(result.PDFPath)
	if err != nil {
		return "", fmt.Errorf("failed to read converted PDF: %w", err)
	}

	objectPath := "converted/" + job.DocumentID + ".pdf"
	if err := p.objects.Store(ctx, objectPath, pdfData, MimePDF); err != nil {
		return "", fmt.Errorf("failed to upload converted PDF: %w", err)
	}

	return objectPath, nil
}

// extractSlides writes the source to scratch and runs the slide text
// extractor over it.
func (p *IngestionPipeline) extractSlides(ctx context.Context, job models.IngestionJob, data []byte) (*SlideExtractionResult, error) {
	scratchPath := filepath.Join(p.cfg.ScratchDir, uuid.NewString()+ExtensionForMime(job.MimeType))
	if err := os.WriteFile(scratchPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write scratch file: %w", err)
	}
	defer os.Remove(scratchPath)

	return p.slides.ExtractText(ctx, scratchPath)
}

// writeMetadata upserts the DocumentMetadata record from whatever the
// extraction and transform stages produced, then records the converted-PDF
// pointer when pre-conversion succeeded.
func (p *IngestionPipeline) writeMetadata(ctx context.Context, job models.IngestionJob, extraction *models.ExtractionResult, outcomes transformOutcomes) error {
	meta := &models.DocumentMetadata{
		DocumentID:    job.DocumentID,
		ExtractedText: extraction.Text,
		Confidence:    extraction.Confidence,
		PageCount:     extraction.PageCount,
		WordCount:     extraction.WordCount,
		SheetCount:    extraction.SheetCount,
	}

	if outcomes.markdown != nil {
		meta.MarkdownContent = &outcomes.markdown.MarkdownContent
		meta.MarkdownStructure = &outcomes.markdown.Structure
	}
	if outcomes.slides != nil {
		meta.SlidesData = outcomes.slides.Slides
		meta.PptxMetadata = outcomes.slides.Metadata
	}

	if err := p.store.UpsertMetadata(ctx, meta); err != nil {
		return err
	}

	if outcomes.convertedPDFPath != "" {
		if err := p.store.SetRenderableContent(ctx, job.DocumentID, outcomes.convertedPDFPath); err != nil {
			return err
		}
	}

	return nil
}

// embedAndIndex chunks the text, embeds each chunk, and batch-upserts the
// survivors into the vector index.
func (p *IngestionPipeline) embedAndIndex(ctx context.Context, job models.IngestionJob, text string) error {
	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return nil
	}

	survivors := p.embedder.EmbedChunks(ctx, job.DocumentID, chunks)
	logger.Info("embedded chunks",
		"document_id", job.DocumentID, "chunks", len(chunks), "survivors", len(survivors))
	if p.metrics != nil {
		p.metrics.RecordChunkOutcomes(int64(len(survivors)), int64(len(chunks)-len(survivors)))
	}

	if len(survivors) == 0 {
		// Every chunk was rejected or errored; the document still completes
		// without embeddings rather than failing outright.
		return nil
	}

	doc, err := p.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return NewRetryableError(StageIndexing, err)
	}

	if err := p.index.Upsert(ctx, doc, survivors); err != nil {
		return NewRetryableError(StageIndexing, err)
	}

	if err := p.store.SetEmbeddingStats(ctx, job.DocumentID, len(survivors)); err != nil {
		return NewRetryableError(StageIndexing, err)
	}

	return nil
}

// finalizeFailure records the failed state and emits the failure event. Runs
// on every failed attempt so the document is never left pending and the UI
// sees the latest error even while retries are outstanding.
func (p *IngestionPipeline) finalizeFailure(ctx context.Context, job models.IngestionJob, jobErr error) {
	msg := TruncateError(jobErr, errorMessageMaxLen)

	if err := p.store.SetFailed(ctx, job.DocumentID, msg); err != nil {
		logger.Error("failed to record document failure",
			"document_id", job.DocumentID, "error", err)
	}

	p.progress.Notify(ctx, job.UserID, job.DocumentID, StageFailed, msg, 0)

	logger.Error("ingestion failed",
		"document_id", job.DocumentID,
		"stage", string(FailureStage(jobErr)),
		"retryable", IsRetryable(jobErr),
		"error", jobErr)
}
