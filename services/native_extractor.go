package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"knowledgebase-platform/models"
)

// NativeExtractor is the in-process fallback used when no extraction service
// is configured. It covers PDF, spreadsheets, HTML, and plain text; image
// formats need the service (OCR) and are rejected here.
type NativeExtractor struct{}

func NewNativeExtractor() *NativeExtractor {
	return &NativeExtractor{}
}

func (e *NativeExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*models.ExtractionResult, error) {
	switch {
	case mimeType == MimePDF:
		return e.extractPDF(data)
	case IsSpreadsheet(mimeType):
		return e.extractSpreadsheet(data)
	case mimeType == "text/html":
		return e.extractHTML(data)
	case strings.HasPrefix(mimeType, "text/"):
		text := string(data)
		return e.result(text, nil, nil), nil
	default:
		return nil, fmt.Errorf("native extraction does not support %s, configure EXTRACTOR_SERVICE_URL", mimeType)
	}
}

func (e *NativeExtractor) extractPDF(data []byte) (*models.ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pageCount := reader.NumPage()
	var sb strings.Builder

	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages rather than losing the whole document
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no extractable text in PDF (%d pages)", pageCount)
	}

	return e.result(text, &pageCount, nil), nil
}

func (e *NativeExtractor) extractSpreadsheet(data []byte) (*models.ExtractionResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var sb strings.Builder

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if line != "" {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}

	sheetCount := len(sheets)
	return e.result(sb.String(), nil, &sheetCount), nil
}

func (e *NativeExtractor) extractHTML(data []byte) (*models.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	// Collapse the whitespace runs HTML rendering would hide
	text = strings.Join(strings.Fields(text), " ")

	return e.result(text, nil, nil), nil
}

func (e *NativeExtractor) result(text string, pageCount, sheetCount *int) *models.ExtractionResult {
	wordCount := len(strings.Fields(text))
	return &models.ExtractionResult{
		Text:       text,
		PageCount:  pageCount,
		WordCount:  &wordCount,
		SheetCount: sheetCount,
	}
}
