package services

import (
	"context"
	"fmt"
	"math"

	"knowledgebase-platform/internal/logger"
	"knowledgebase-platform/models"
)

// Embedder computes a vector for one piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkEmbedder turns chunks into validated embeddings. A chunk whose
// embedding call fails or whose vector fails validation is skipped, never
// failing the job: partial coverage beats total failure.
type ChunkEmbedder struct {
	embedder     Embedder
	maxMagnitude float64
}

func NewChunkEmbedder(embedder Embedder, maxMagnitude float64) *ChunkEmbedder {
	if maxMagnitude <= 0 {
		maxMagnitude = 100.0
	}

	return &ChunkEmbedder{
		embedder:     embedder,
		maxMagnitude: maxMagnitude,
	}
}

// EmbedChunks embeds each chunk in order and returns the survivors.
func (e *ChunkEmbedder) EmbedChunks(ctx context.Context, documentID string, chunks []models.Chunk) []models.ChunkEmbedding {
	survivors := make([]models.ChunkEmbedding, 0, len(chunks))

	for _, chunk := range chunks {
		vec, err := e.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			logger.Warn("embedding failed, skipping chunk",
				"document_id", documentID, "chunk_index", chunk.Index, "error", err)
			continue
		}

		if err := ValidateVector(vec, e.maxMagnitude); err != nil {
			logger.Warn("embedding rejected, skipping chunk",
				"document_id", documentID, "chunk_index", chunk.Index, "error", err)
			continue
		}

		survivors = append(survivors, models.ChunkEmbedding{
			Index:     chunk.Index,
			Content:   chunk.Content,
			Embedding: vec,
			StartChar: chunk.StartChar,
			EndChar:   chunk.EndChar,
		})
	}

	return survivors
}

// ValidateVector rejects degenerate (all-zero) vectors and vectors with any
// component whose absolute value exceeds maxMagnitude, which signals a
// malformed or unnormalized vector from the upstream model.
func ValidateVector(vec []float32, maxMagnitude float64) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}

	allZero := true
	for i, v := range vec {
		if v != 0 {
			allZero = false
		}
		if math.Abs(float64(v)) > maxMagnitude {
			return fmt.Errorf("component %d magnitude %.4f exceeds bound %.1f", i, v, maxMagnitude)
		}
	}
	if allZero {
		return fmt.Errorf("zero vector")
	}

	return nil
}
