package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"knowledgebase-platform/internal/logger"
)

// SlideObjectStore is the slice of the object store the post-processor needs.
type SlideObjectStore interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	Store(ctx context.Context, path string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// SlideMetadataStore merges uploaded image URLs into the persisted slide data.
type SlideMetadataStore interface {
	MergeSlideImages(ctx context.Context, id string, imagesBySlide map[int][]string) error
}

// SlidePostProcessor extracts embedded slide images off the critical path,
// after the ingestion job has already completed. It only ever adds image URLs
// to existing slide records; document status is out of its reach.
type SlidePostProcessor struct {
	objects    SlideObjectStore
	store      SlideMetadataStore
	slides     SlideExtractor
	scratchDir string
	signedTTL  time.Duration
}

func NewSlidePostProcessor(objects SlideObjectStore, store SlideMetadataStore, slides SlideExtractor, scratchDir string, signedTTL time.Duration) *SlidePostProcessor {
	return &SlidePostProcessor{
		objects:    objects,
		store:      store,
		slides:     slides,
		scratchDir: scratchDir,
		signedTTL:  signedTTL,
	}
}

// Run fetches the presentation, extracts its images, uploads each one, and
// merges presigned URLs into the slide metadata. Any error aborts the
// enrichment but leaves the completed document untouched.
func (p *SlidePostProcessor) Run(ctx context.Context, documentID, encryptedFilename string) error {
	data, err := p.objects.Fetch(ctx, encryptedFilename)
	if err != nil {
		return fmt.Errorf("failed to fetch presentation: %w", err)
	}

	workDir := filepath.Join(p.scratchDir, "slides-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0700); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	scratchPath := filepath.Join(workDir, "source.pptx")
	if err := os.WriteFile(scratchPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write scratch file: %w", err)
	}

	result, err := p.slides.ExtractImages(ctx, scratchPath, workDir)
	if err != nil {
		return fmt.Errorf("slide image extraction failed: %w", err)
	}
	if len(result.Images) == 0 {
		logger.Info("presentation has no embedded images", "document_id", documentID)
		return nil
	}

	imagesBySlide := make(map[int][]string)
	for _, img := range result.Images {
		imgData, err := os.ReadFile(img.Path)
		if err != nil {
			logger.Warn("failed to read extracted image",
				"document_id", documentID, "path", img.Path, "error", err)
			continue
		}

		objectPath := fmt.Sprintf("documents/%s/slides/%s", documentID, img.Filename)
		if err := p.objects.Store(ctx, objectPath, imgData, img.ContentType); err != nil {
			logger.Warn("failed to upload slide image",
				"document_id", documentID, "path", objectPath, "error", err)
			continue
		}

		url, err := p.objects.PresignedURL(ctx, objectPath, p.signedTTL)
		if err != nil {
			logger.Warn("failed to presign slide image",
				"document_id", documentID, "path", objectPath, "error", err)
			continue
		}

		imagesBySlide[img.SlideNumber] = append(imagesBySlide[img.SlideNumber], url)
	}

	if len(imagesBySlide) == 0 {
		return nil
	}

	if err := p.store.MergeSlideImages(ctx, documentID, imagesBySlide); err != nil {
		return fmt.Errorf("failed to merge slide images: %w", err)
	}

	logger.Info("slide images merged",
		"document_id", documentID, "slides", len(imagesBySlide))
	return nil
}
