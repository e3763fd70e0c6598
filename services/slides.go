package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"knowledgebase-platform/models"
)

// SlideExtractor pulls per-slide text (and, in the image variant, embedded
// images) out of a presentation file on disk.
type SlideExtractor interface {
	ExtractText(ctx context.Context, scratchPath string) (*SlideExtractionResult, error)
	ExtractImages(ctx context.Context, scratchPath, outputDir string) (*SlideImageResult, error)
}

// SlideExtractionResult is the text variant's output.
type SlideExtractionResult struct {
	Slides      []models.SlideInfo
	TotalSlides int
	Metadata    *models.PptxMetadata
}

// SlideImage is one extracted image file on local disk, ready for upload.
type SlideImage struct {
	SlideNumber int
	Filename    string
	Path        string
	ContentType string
}

// SlideImageResult is the image variant's output.
type SlideImageResult struct {
	Images []SlideImage
}

// ScriptSlideExtractor invokes the presentation helper scripts and parses
// their JSON output from stdout.
type ScriptSlideExtractor struct {
	python      string
	textScript  string
	imageScript string
}

func NewScriptSlideExtractor(python, textScript, imageScript string) *ScriptSlideExtractor {
	return &ScriptSlideExtractor{
		python:      python,
		textScript:  textScript,
		imageScript: imageScript,
	}
}

// slideScriptOutput mirrors the helper scripts' JSON contract.
type slideScriptOutput struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	TotalSlides int    `json:"total_slides"`
	Slides      []struct {
		SlideNumber int    `json:"slide_number"`
		Title       string `json:"title"`
		Content     string `json:"content"`
		WordCount   int    `json:"word_count"`
		Images      []struct {
			Filename    string `json:"filename"`
			Path        string `json:"path"`
			ContentType string `json:"content_type"`
		} `json:"images,omitempty"`
	} `json:"slides"`
	Metadata *struct {
		Title       string `json:"title"`
		Author      string `json:"author"`
		SlideWidth  int    `json:"slide_width"`
		SlideHeight int    `json:"slide_height"`
	} `json:"metadata,omitempty"`
}

func (e *ScriptSlideExtractor) ExtractText(ctx context.Context, scratchPath string) (*SlideExtractionResult, error) {
	out, err := e.run(ctx, e.textScript, scratchPath)
	if err != nil {
		return nil, err
	}

	slides := make([]models.SlideInfo, 0, len(out.Slides))
	for _, s := range out.Slides {
		slides = append(slides, models.SlideInfo{
			SlideNumber: s.SlideNumber,
			Title:       s.Title,
			Content:     s.Content,
			WordCount:   s.WordCount,
		})
	}

	result := &SlideExtractionResult{
		Slides:      slides,
		TotalSlides: out.TotalSlides,
	}
	if out.Metadata != nil {
		result.Metadata = &models.PptxMetadata{
			Title:       out.Metadata.Title,
			Author:      out.Metadata.Author,
			TotalSlides: out.TotalSlides,
			SlideWidth:  out.Metadata.SlideWidth,
			SlideHeight: out.Metadata.SlideHeight,
		}
	}

	return result, nil
}

func (e *ScriptSlideExtractor) ExtractImages(ctx context.Context, scratchPath, outputDir string) (*SlideImageResult, error) {
	out, err := e.run(ctx, e.imageScript, scratchPath, outputDir)
	if err != nil {
		return nil, err
	}

	var images []SlideImage
	for _, s := range out.Slides {
		for _, img := range s.Images {
			images = append(images, SlideImage{
				SlideNumber: s.SlideNumber,
				Filename:    img.Filename,
				Path:        img.Path,
				ContentType: img.ContentType,
			})
		}
	}

	return &SlideImageResult{Images: images}, nil
}

func (e *ScriptSlideExtractor) run(ctx context.Context, script string, args ...string) (*slideScriptOutput, error) {
	cmdArgs := append([]string{script}, args...)
	cmd := exec.CommandContext(ctx, e.python, cmdArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("slide script failed: %v: %s", err, stderr.String())
	}

	var out slideScriptOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode slide script output: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("slide extraction failed: %s", out.Error)
	}

	return &out, nil
}
