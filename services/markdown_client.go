package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"knowledgebase-platform/models"
)

// MarkdownConverter renders a document as markdown plus a heading structure
// used for deep links. Best-effort: the pipeline nulls the result on failure.
type MarkdownConverter interface {
	Convert(ctx context.Context, data []byte, mimeType, filenameHint, documentID string) (*MarkdownResult, error)
}

// MarkdownResult is the transform output persisted into DocumentMetadata.
type MarkdownResult struct {
	MarkdownContent string                   `json:"markdown_content"`
	Structure       models.MarkdownStructure `json:"structure"`
}

// MarkdownClient talks to the markdown conversion service over HTTP.
type MarkdownClient struct {
	httpClient *http.Client
	baseURL    string
}

type markdownRequest struct {
	ContentBase64 string `json:"content_base64"`
	MimeType      string `json:"mime_type"`
	Filename      string `json:"filename"`
	DocumentID    string `json:"document_id"`
}

type markdownResponse struct {
	Success         bool                     `json:"success"`
	MarkdownContent string                   `json:"markdown_content"`
	Structure       models.MarkdownStructure `json:"structure"`
	Error           string                   `json:"error,omitempty"`
}

func NewMarkdownClient(baseURL string) *MarkdownClient {
	return &MarkdownClient{
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		baseURL: baseURL,
	}
}

func (c *MarkdownClient) Convert(ctx context.Context, data []byte, mimeType, filenameHint, documentID string) (*MarkdownResult, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("markdown service not configured")
	}

	body, err := json.Marshal(markdownRequest{
		ContentBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:      mimeType,
		Filename:      filenameHint,
		DocumentID:    documentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal markdown request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/convert", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("markdown request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("markdown request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var mdResp markdownResponse
	if err := json.NewDecoder(resp.Body).Decode(&mdResp); err != nil {
		return nil, fmt.Errorf("failed to decode markdown response: %w", err)
	}

	if !mdResp.Success {
		return nil, fmt.Errorf("markdown conversion failed: %s", mdResp.Error)
	}

	return &MarkdownResult{
		MarkdownContent: mdResp.MarkdownContent,
		Structure:       mdResp.Structure,
	}, nil
}
