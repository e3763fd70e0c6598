package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledgebase-platform/models"
)

// VectorIndex stores validated chunk embeddings for nearest-neighbor search.
type VectorIndex interface {
	Upsert(ctx context.Context, doc *models.Document, chunks []models.ChunkEmbedding) error
}

// MongoVectorIndex upserts chunk vectors into the document_chunks collection
// behind an Atlas Vector Search index. Each chunk document carries the
// denormalized context fields search results are rendered from.
type MongoVectorIndex struct {
	chunks *mongo.Collection
}

func NewMongoVectorIndex(db *mongo.Database) *MongoVectorIndex {
	return &MongoVectorIndex{
		chunks: db.Collection("document_chunks"),
	}
}

// Upsert writes all surviving chunks in one unordered batch keyed by
// (document_id, chunk_index), so re-ingestion overwrites instead of
// duplicating.
func (v *MongoVectorIndex) Upsert(ctx context.Context, doc *models.Document, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(chunks))
	for _, ch := range chunks {
		record := bson.M{
			"document_id": doc.ID,
			"user_id":     doc.UserID,
			"chunk_index": ch.Index,
			"content":     ch.Content,
			"vector":      ch.Embedding,
			"start_char":  ch.StartChar,
			"end_char":    ch.EndChar,
			// Denormalized document context for search results
			"filename":    doc.OriginalName,
			"mime_type":   doc.MimeType,
			"folder_name": doc.FolderName,
			"folder_path": doc.FolderPath,
			"created_at":  doc.CreatedAt,
			"indexed_at":  time.Now(),
		}

		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"document_id": doc.ID, "chunk_index": ch.Index}).
			SetUpdate(bson.M{"$set": record}).
			SetUpsert(true))
	}

	_, err := v.chunks.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to upsert %d chunks for %s: %w", len(chunks), doc.ID, err)
	}

	return nil
}
