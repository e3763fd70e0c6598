package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"knowledgebase-platform/internal/config"
	"knowledgebase-platform/models"
)

type fakeStore struct {
	doc           *models.Document
	meta          *models.DocumentMetadata
	completed     bool
	failedMessage string
	renderable    string
	chunksCount   int
	statsCalls    int
}

func (s *fakeStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	if s.doc == nil {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return s.doc, nil
}

func (s *fakeStore) SetCompleted(ctx context.Context, id string) error {
	s.completed = true
	return nil
}

func (s *fakeStore) SetFailed(ctx context.Context, id, message string) error {
	s.failedMessage = message
	return nil
}

func (s *fakeStore) UpsertMetadata(ctx context.Context, meta *models.DocumentMetadata) error {
	s.meta = meta
	return nil
}

func (s *fakeStore) SetRenderableContent(ctx context.Context, id, objectPath string) error {
	s.renderable = objectPath
	return nil
}

func (s *fakeStore) SetEmbeddingStats(ctx context.Context, id string, chunksCount int) error {
	s.statsCalls++
	s.chunksCount = chunksCount
	return nil
}

type fakeObjects struct {
	data       map[string][]byte
	fetchCalls int
	stored     map[string][]byte
}

func (o *fakeObjects) Fetch(ctx context.Context, path string) ([]byte, error) {
	o.fetchCalls++
	data, ok := o.data[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return data, nil
}

func (o *fakeObjects) Store(ctx context.Context, path string, data []byte, contentType string) error {
	if o.stored == nil {
		o.stored = make(map[string][]byte)
	}
	o.stored[path] = data
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*models.ExtractionResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	wc := len(strings.Fields(e.text))
	return &models.ExtractionResult{Text: e.text, WordCount: &wc}, nil
}

type fakeMarkdown struct {
	err   error
	calls int
}

func (m *fakeMarkdown) Convert(ctx context.Context, data []byte, mimeType, filenameHint, documentID string) (*MarkdownResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &MarkdownResult{MarkdownContent: "# converted"}, nil
}

type fakeSlides struct {
	err error
}

func (s *fakeSlides) ExtractText(ctx context.Context, scratchPath string) (*SlideExtractionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &SlideExtractionResult{
		Slides: []models.SlideInfo{
			{SlideNumber: 1, Title: "Intro", Content: "hello", WordCount: 1},
		},
		TotalSlides: 1,
	}, nil
}

func (s *fakeSlides) ExtractImages(ctx context.Context, scratchPath, outputDir string) (*SlideImageResult, error) {
	return &SlideImageResult{}, nil
}

type fakeIndex struct {
	upserted []models.ChunkEmbedding
	calls    int
}

func (i *fakeIndex) Upsert(ctx context.Context, doc *models.Document, chunks []models.ChunkEmbedding) error {
	i.calls++
	i.upserted = chunks
	return nil
}

type fakeProgress struct {
	stages []Stage
}

func (p *fakeProgress) Notify(ctx context.Context, userID, documentID string, stage Stage, message string, progress int) {
	p.stages = append(p.stages, stage)
}

func (p *fakeProgress) last() Stage {
	if len(p.stages) == 0 {
		return ""
	}
	return p.stages[len(p.stages)-1]
}

type fakeEnqueuer struct {
	calls int
}

func (e *fakeEnqueuer) EnqueueSlideImages(ctx context.Context, documentID, userID, encryptedFilename string) error {
	e.calls++
	return nil
}

type pipelineFixture struct {
	cfg      *config.Config
	store    *fakeStore
	objects  *fakeObjects
	extract  *fakeExtractor
	markdown *fakeMarkdown
	slides   *fakeSlides
	index    *fakeIndex
	progress *fakeProgress
	enqueuer *fakeEnqueuer
	pipeline *IngestionPipeline
}

func newPipelineFixture(t *testing.T, extractedText string) *pipelineFixture {
	t.Helper()

	cfg := &config.Config{
		AllowedTypes:          []string{"text/plain", MimePDF, MimeDocx, MimePptx},
		MaxFileSize:           1024 * 1024,
		ExtractionTimeout:     5 * time.Second,
		MaxExtractedChars:     10000,
		MinEmbeddingChars:     50,
		ChunkMaxWords:         500,
		ChunkOverlapSentences: 2,
		EmbeddingMaxMagnitude: 100.0,
		ScratchDir:            t.TempDir(),
	}

	f := &pipelineFixture{
		cfg:      cfg,
		store:    &fakeStore{doc: &models.Document{ID: "doc-1", UserID: "user-1"}},
		objects:  &fakeObjects{data: map[string][]byte{"documents/user-1/doc-1.txt": []byte("raw bytes")}},
		extract:  &fakeExtractor{text: extractedText},
		markdown: &fakeMarkdown{},
		slides:   &fakeSlides{},
		index:    &fakeIndex{},
		progress: &fakeProgress{},
		enqueuer: &fakeEnqueuer{},
	}

	f.pipeline = NewIngestionPipeline(
		cfg, f.store, f.objects, f.extract, f.markdown,
		NewSofficeConverter("soffice"), f.slides,
		&fakeEmbedder{}, f.index, f.progress, f.enqueuer, nil,
	)
	return f
}

func textJob() models.IngestionJob {
	return models.IngestionJob{
		DocumentID:        "doc-1",
		UserID:            "user-1",
		EncryptedFilename: "documents/user-1/doc-1.txt",
		MimeType:          "text/plain",
		FileSizeBytes:     9,
	}
}

func longText() string {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "This is extracted sentence number %d with enough words. ", i)
	}
	return sb.String()
}

func TestPipelineHappyPath(t *testing.T) {
	f := newPipelineFixture(t, longText())

	if err := f.pipeline.Run(context.Background(), textJob()); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if !f.store.completed {
		t.Error("document not marked completed")
	}
	if f.store.failedMessage != "" {
		t.Errorf("unexpected failure recorded: %q", f.store.failedMessage)
	}
	if f.store.meta == nil || f.store.meta.ExtractedText == "" {
		t.Error("metadata not persisted")
	}
	if f.index.calls != 1 || len(f.index.upserted) == 0 {
		t.Error("chunks not indexed")
	}
	if f.store.statsCalls != 1 || f.store.chunksCount != len(f.index.upserted) {
		t.Error("embedding stats not recorded")
	}
	if f.progress.last() != StageCompleted {
		t.Errorf("final progress stage %s, want %s", f.progress.last(), StageCompleted)
	}
	if f.enqueuer.calls != 0 {
		t.Error("non-presentation must not enqueue slide images")
	}
}

func TestPipelineRejectsUnsupportedType(t *testing.T) {
	f := newPipelineFixture(t, longText())
	job := textJob()
	job.MimeType = "application/zip"

	err := f.pipeline.Run(context.Background(), job)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if IsRetryable(err) {
		t.Error("invalid type must be fatal")
	}
	if FailureStage(err) != StageValidation {
		t.Errorf("failure stage %s, want %s", FailureStage(err), StageValidation)
	}
	if f.objects.fetchCalls != 0 {
		t.Error("validation failure must not fetch the file")
	}
	if f.store.failedMessage == "" {
		t.Error("failed state not recorded")
	}
	if f.progress.last() != StageFailed {
		t.Errorf("final progress stage %s, want %s", f.progress.last(), StageFailed)
	}
}

func TestPipelineRejectsOversizedFile(t *testing.T) {
	f := newPipelineFixture(t, longText())
	job := textJob()
	job.FileSizeBytes = f.cfg.MaxFileSize + 1

	err := f.pipeline.Run(context.Background(), job)
	if err == nil || IsRetryable(err) {
		t.Fatalf("expected fatal validation error, got %v", err)
	}
	if f.objects.fetchCalls != 0 {
		t.Error("oversized file must be rejected before fetching")
	}
}

func TestPipelineFetchFailureIsRetryable(t *testing.T) {
	f := newPipelineFixture(t, longText())
	job := textJob()
	job.EncryptedFilename = "documents/user-1/missing.txt"

	err := f.pipeline.Run(context.Background(), job)
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if !IsRetryable(err) {
		t.Error("fetch failure must be retryable")
	}
	if FailureStage(err) != StageDownload {
		t.Errorf("failure stage %s, want %s", FailureStage(err), StageDownload)
	}
}

func TestPipelineExtractionFailureIsRetryable(t *testing.T) {
	f := newPipelineFixture(t, "")
	f.extract.err = fmt.Errorf("extraction service unavailable")

	err := f.pipeline.Run(context.Background(), textJob())
	if err == nil || !IsRetryable(err) {
		t.Fatalf("expected retryable extraction error, got %v", err)
	}
	if f.store.failedMessage == "" {
		t.Error("failed state not recorded mid-retry")
	}
}

func TestPipelineOversizedTextIsFatal(t *testing.T) {
	f := newPipelineFixture(t, strings.Repeat("word ", 3000))

	err := f.pipeline.Run(context.Background(), textJob())
	if err == nil {
		t.Fatal("expected oversized-text error")
	}
	if IsRetryable(err) {
		t.Error("oversized extracted text must be fatal")
	}
}

func TestPipelineSkipsEmbeddingsForShortText(t *testing.T) {
	f := newPipelineFixture(t, "too short")

	if err := f.pipeline.Run(context.Background(), textJob()); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if !f.store.completed {
		t.Error("short document must still complete")
	}
	if f.index.calls != 0 {
		t.Error("short text must not be indexed")
	}
	if f.store.statsCalls != 0 {
		t.Error("embedding stats must not be written without embeddings")
	}
	if f.store.meta == nil || f.store.meta.ExtractedText != "too short" {
		t.Error("metadata must be persisted even without embeddings")
	}
}

func TestPipelineTransformFailureDoesNotFailJob(t *testing.T) {
	f := newPipelineFixture(t, longText())
	f.markdown.err = fmt.Errorf("markdown service down")

	if err := f.pipeline.Run(context.Background(), textJob()); err != nil {
		t.Fatalf("transform failure escalated to job failure: %v", err)
	}

	if !f.store.completed {
		t.Error("document not completed")
	}
	if f.store.meta.MarkdownContent != nil {
		t.Error("failed transform must leave its field null")
	}
}

func TestPipelinePresentationFlow(t *testing.T) {
	f := newPipelineFixture(t, longText())
	f.objects.data["documents/user-1/deck.pptx"] = []byte("pptx bytes")

	job := textJob()
	job.MimeType = MimePptx
	job.EncryptedFilename = "documents/user-1/deck.pptx"

	if err := f.pipeline.Run(context.Background(), job); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if len(f.store.meta.SlidesData) != 1 {
		t.Fatalf("expected 1 slide in metadata, got %d", len(f.store.meta.SlidesData))
	}
	if f.enqueuer.calls != 1 {
		t.Error("completed presentation must enqueue slide image extraction")
	}
}

func TestPipelineSlideFailureDoesNotFailJob(t *testing.T) {
	f := newPipelineFixture(t, longText())
	f.slides.err = fmt.Errorf("script crashed")
	f.objects.data["documents/user-1/deck.pptx"] = []byte("pptx bytes")

	job := textJob()
	job.MimeType = MimePptx
	job.EncryptedFilename = "documents/user-1/deck.pptx"

	if err := f.pipeline.Run(context.Background(), job); err != nil {
		t.Fatalf("slide failure escalated to job failure: %v", err)
	}
	if len(f.store.meta.SlidesData) != 0 {
		t.Error("failed slide extraction must leave slides empty")
	}
}

func TestPipelineCompletesWhenAllChunksRejected(t *testing.T) {
	f := newPipelineFixture(t, longText())

	// Rebuild with an embedder that only produces invalid vectors
	zero := &fakeEmbedder{vectors: map[string][]float32{}}
	zero.err = fmt.Errorf("model overloaded")
	f.pipeline = NewIngestionPipeline(
		f.cfg, f.store, f.objects, f.extract, f.markdown,
		NewSofficeConverter("soffice"), f.slides,
		zero, f.index, f.progress, f.enqueuer, nil,
	)

	if err := f.pipeline.Run(context.Background(), textJob()); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if !f.store.completed {
		t.Error("document must complete without embeddings")
	}
	if f.index.calls != 0 {
		t.Error("index must not be touched with zero survivors")
	}
}
