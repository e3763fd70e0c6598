package services

import (
	"fmt"
	"strings"
	"testing"
)

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(500, 2)

	if chunks := c.Split(""); chunks != nil {
		t.Fatalf("expected nil for empty input, got %d chunks", len(chunks))
	}
	if chunks := c.Split("   \n\t  "); chunks != nil {
		t.Fatalf("expected nil for whitespace input, got %d chunks", len(chunks))
	}
}

func TestChunkerSingleChunk(t *testing.T) {
	c := NewChunker(500, 2)
	text := "First sentence here. Second sentence follows. Third one ends it."

	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	ch := chunks[0]
	if ch.Index != 0 {
		t.Errorf("expected index 0, got %d", ch.Index)
	}
	if ch.OverlapChars != 0 {
		t.Errorf("first chunk must carry no overlap, got %d chars", ch.OverlapChars)
	}
	if ch.StartChar != 0 || ch.EndChar != len(text) {
		t.Errorf("span [%d,%d) does not cover text of length %d", ch.StartChar, ch.EndChar, len(text))
	}
	if ch.Content != text {
		t.Errorf("content mismatch: %q", ch.Content)
	}
}

func TestChunkerWordBound(t *testing.T) {
	c := NewChunker(20, 2)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "Sentence number %d has exactly six words. ", i)
	}
	text := sb.String()

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Fresh words per chunk never exceed the bound. Overlap is on top of the
	// bound, so total content words may exceed it by up to two sentences.
	for _, ch := range chunks {
		fresh := ch.Content[ch.OverlapChars:]
		if words := len(strings.Fields(fresh)); words > 20 {
			t.Errorf("chunk %d carries %d fresh words, bound is 20", ch.Index, words)
		}
	}
}

func TestChunkerContiguousSpans(t *testing.T) {
	c := NewChunker(15, 2)

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "This is test sentence number %d. ", i)
	}
	text := sb.String()

	chunks := c.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	if chunks[0].StartChar != 0 {
		t.Errorf("first span starts at %d, want 0", chunks[0].StartChar)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartChar != chunks[i-1].EndChar {
			t.Errorf("gap between chunk %d (end %d) and chunk %d (start %d)",
				i-1, chunks[i-1].EndChar, i, chunks[i].StartChar)
		}
	}
	if last := chunks[len(chunks)-1]; last.EndChar != len(text) {
		t.Errorf("last span ends at %d, want %d", last.EndChar, len(text))
	}

	// Stripping each chunk's overlap prefix must reconstruct the source text
	var rebuilt strings.Builder
	for _, ch := range chunks {
		rebuilt.WriteString(ch.Content[ch.OverlapChars:])
	}
	if rebuilt.String() != text {
		t.Error("concatenated fresh content does not reconstruct the source text")
	}
}

func TestChunkerOverlapContent(t *testing.T) {
	c := NewChunker(10, 2)
	text := "Alpha one two three. Bravo four five six. Charlie seven eight nine. Delta ten eleven twelve. Echo thirteen fourteen fifteen."

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		ch := chunks[i]
		if ch.OverlapChars == 0 {
			t.Errorf("chunk %d has no overlap", i)
			continue
		}
		overlap := ch.Content[:ch.OverlapChars]
		if !strings.HasSuffix(chunks[i-1].Content, overlap) {
			t.Errorf("chunk %d overlap %q is not a suffix of the previous chunk", i, overlap)
		}
	}
}

func TestChunkerZeroOverlap(t *testing.T) {
	c := NewChunker(5, 0)
	text := "One two three four five. Six seven eight nine ten. Eleven twelve thirteen fourteen fifteen."

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	for _, ch := range chunks {
		if ch.OverlapChars != 0 {
			t.Errorf("chunk %d carries %d overlap chars with overlap disabled", ch.Index, ch.OverlapChars)
		}
		rebuilt.WriteString(ch.Content)
	}
	if rebuilt.String() != text {
		t.Error("concatenated chunks do not reconstruct the source text")
	}
}

func TestChunkerDeterministic(t *testing.T) {
	c := NewChunker(25, 2)

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Deterministic sentence number %d ends here. ", i)
	}
	text := sb.String()

	first := c.Split(text)
	second := c.Split(text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkerUnterminatedTail(t *testing.T) {
	c := NewChunker(500, 2)
	text := "A complete sentence. Then a trailing fragment without punctuation"

	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].EndChar != len(text) {
		t.Errorf("tail fragment not covered: span ends at %d, want %d", chunks[0].EndChar, len(text))
	}
}
