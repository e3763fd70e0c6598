package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"knowledgebase-platform/models"
)

// TextExtractor converts raw bytes plus a MIME type into extracted text and
// structural metadata. The pipeline treats it as opaque and wraps every call
// in its own hard wall-clock timeout.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*models.ExtractionResult, error)
}

// ExtractorClient talks to the text extraction service over HTTP.
type ExtractorClient struct {
	httpClient *http.Client
	baseURL    string
}

// extractorResponse mirrors the extraction service's JSON response.
type extractorResponse struct {
	Success    bool     `json:"success"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	PageCount  *int     `json:"page_count,omitempty"`
	WordCount  *int     `json:"word_count,omitempty"`
	SheetCount *int     `json:"sheet_count,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// NewExtractorClient creates an extraction service client. The HTTP client
// timeout is a transport backstop; the real extraction deadline is the
// caller's context.
func NewExtractorClient(baseURL string) *ExtractorClient {
	return &ExtractorClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		baseURL: baseURL,
	}
}

// Extract sends the file to the extraction service.
func (c *ExtractorClient) Extract(ctx context.Context, data []byte, mimeType string) (*models.ExtractionResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "document"+ExtensionForMime(mimeType))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file data: %w", err)
	}

	if err := writer.WriteField("mime_type", mimeType); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("extraction request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var extResp extractorResponse
	if err := json.NewDecoder(resp.Body).Decode(&extResp); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	if !extResp.Success {
		return nil, fmt.Errorf("extraction failed: %s", extResp.Error)
	}

	return &models.ExtractionResult{
		Text:       extResp.Text,
		Confidence: extResp.Confidence,
		PageCount:  extResp.PageCount,
		WordCount:  extResp.WordCount,
		SheetCount: extResp.SheetCount,
	}, nil
}
