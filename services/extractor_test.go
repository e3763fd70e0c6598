package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractorClientRoundTrip(t *testing.T) {
	var gotMime string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A truncated or unterminated multipart body fails to parse here
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("malformed multipart body: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotMime = r.FormValue("mime_type")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFile, _ = io.ReadAll(file)

		wc := 2
		json.NewEncoder(w).Encode(extractorResponse{
			Success:   true,
			Text:      "extracted text",
			WordCount: &wc,
		})
	}))
	defer srv.Close()

	c := NewExtractorClient(srv.URL)
	result, err := c.Extract(context.Background(), []byte("file bytes"), "text/plain")
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}

	if gotMime != "text/plain" {
		t.Errorf("mime_type field %q, want text/plain", gotMime)
	}
	if string(gotFile) != "file bytes" {
		t.Errorf("file part %q, want original bytes", gotFile)
	}
	if result.Text != "extracted text" {
		t.Errorf("text %q", result.Text)
	}
	if result.WordCount == nil || *result.WordCount != 2 {
		t.Errorf("word count %v", result.WordCount)
	}
}

func TestExtractorClientServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractorResponse{
			Success: false,
			Error:   "unsupported content",
		})
	}))
	defer srv.Close()

	c := NewExtractorClient(srv.URL)
	if _, err := c.Extract(context.Background(), []byte("x"), "application/pdf"); err == nil {
		t.Fatal("expected error from unsuccessful response")
	}
}
