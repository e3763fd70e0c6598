package services

import (
	"context"
	"strings"
	"testing"
)

func TestNativeExtractorPlainText(t *testing.T) {
	e := NewNativeExtractor()

	result, err := e.Extract(context.Background(), []byte("hello world from a text file"), "text/plain")
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if result.Text != "hello world from a text file" {
		t.Errorf("text altered: %q", result.Text)
	}
	if result.WordCount == nil || *result.WordCount != 6 {
		t.Errorf("wrong word count: %v", result.WordCount)
	}
}

func TestNativeExtractorHTML(t *testing.T) {
	e := NewNativeExtractor()
	html := `<html><head><style>body{color:red}</style></head>
<body><script>alert(1)</script><h1>Title</h1><p>Some   body
text.</p></body></html>`

	result, err := e.Extract(context.Background(), []byte(html), "text/html")
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}

	if strings.Contains(result.Text, "alert") || strings.Contains(result.Text, "color:red") {
		t.Errorf("script/style content leaked into text: %q", result.Text)
	}
	if !strings.Contains(result.Text, "Title") || !strings.Contains(result.Text, "Some body text.") {
		t.Errorf("body text missing or whitespace not collapsed: %q", result.Text)
	}
}

func TestNativeExtractorRejectsImages(t *testing.T) {
	e := NewNativeExtractor()

	if _, err := e.Extract(context.Background(), []byte{0x89, 0x50}, "image/png"); err == nil {
		t.Fatal("images must require the extraction service")
	}
}
