package services

import (
	"context"
	"fmt"
	"testing"

	"knowledgebase-platform/models"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestValidateVector(t *testing.T) {
	cases := []struct {
		name    string
		vec     []float32
		wantErr bool
	}{
		{"valid", []float32{0.1, -0.5, 0.9}, false},
		{"empty", nil, true},
		{"all zero", []float32{0, 0, 0}, true},
		{"over magnitude", []float32{0.1, 150.0, 0.2}, true},
		{"negative over magnitude", []float32{-150.0, 0.1}, true},
		{"at bound", []float32{100.0, 0.1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateVector(tc.vec, 100.0)
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEmbedChunksAllSurvive(t *testing.T) {
	e := NewChunkEmbedder(&fakeEmbedder{}, 100.0)
	chunks := []models.Chunk{
		{Index: 0, Content: "first chunk", StartChar: 0, EndChar: 11},
		{Index: 1, Content: "second chunk", StartChar: 11, EndChar: 23},
	}

	survivors := e.EmbedChunks(context.Background(), "doc-1", chunks)
	if len(survivors) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(survivors))
	}
	for i, s := range survivors {
		if s.Index != chunks[i].Index || s.Content != chunks[i].Content {
			t.Errorf("survivor %d does not match its chunk", i)
		}
		if s.StartChar != chunks[i].StartChar || s.EndChar != chunks[i].EndChar {
			t.Errorf("survivor %d lost its char span", i)
		}
	}
}

func TestEmbedChunksSkipsFailures(t *testing.T) {
	e := NewChunkEmbedder(&fakeEmbedder{err: fmt.Errorf("upstream down")}, 100.0)
	chunks := []models.Chunk{
		{Index: 0, Content: "a"},
		{Index: 1, Content: "b"},
	}

	survivors := e.EmbedChunks(context.Background(), "doc-1", chunks)
	if len(survivors) != 0 {
		t.Fatalf("expected no survivors, got %d", len(survivors))
	}
}

func TestEmbedChunksSkipsRejectedVectors(t *testing.T) {
	fake := &fakeEmbedder{
		vectors: map[string][]float32{
			"good": {0.1, 0.2},
			"zero": {0, 0},
			"huge": {500.0, 0.1},
		},
	}
	e := NewChunkEmbedder(fake, 100.0)
	chunks := []models.Chunk{
		{Index: 0, Content: "good"},
		{Index: 1, Content: "zero"},
		{Index: 2, Content: "huge"},
	}

	survivors := e.EmbedChunks(context.Background(), "doc-1", chunks)
	if len(survivors) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(survivors))
	}
	if survivors[0].Index != 0 {
		t.Errorf("wrong survivor: chunk %d", survivors[0].Index)
	}
	if fake.calls != 3 {
		t.Errorf("a rejected chunk must not stop later ones: %d calls", fake.calls)
	}
}
