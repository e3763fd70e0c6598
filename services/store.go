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

// MongoStore persists Document and DocumentMetadata records. The ingestion
// pipeline is the only writer of document status while a job is in flight.
type MongoStore struct {
	documents *mongo.Collection
	metadata  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		documents: db.Collection("documents"),
		metadata:  db.Collection("document_metadata"),
	}
}

// InsertDocument creates the pending document record at upload time.
func (s *MongoStore) InsertDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// DeleteDocument removes a document record (upload-path cleanup only).
func (s *MongoStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *MongoStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("document %s not found", id)
		}
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	return &doc, nil
}

func (s *MongoStore) ListDocuments(ctx context.Context, userID string, skip, limit int64) ([]models.Document, int64, error) {
	filter := bson.M{"user_id": userID}

	cursor, err := s.documents.Find(ctx, filter,
		options.Find().SetSort(bson.M{"created_at": -1}).SetSkip(skip).SetLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode documents: %w", err)
	}

	total, err := s.documents.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	return docs, total, nil
}

// SetCompleted marks a document fully processed.
func (s *MongoStore) SetCompleted(ctx context.Context, id string) error {
	now := time.Now()
	_, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":       models.StatusCompleted,
			"processed_at": now,
			"updated_at":   now,
		},
		"$unset": bson.M{"error_message": ""},
	})
	if err != nil {
		return fmt.Errorf("failed to mark document %s completed: %w", id, err)
	}
	return nil
}

// SetFailed marks a document failed with a truncated error message. Called on
// every failed attempt so the UI reflects the latest state even mid-retry.
func (s *MongoStore) SetFailed(ctx context.Context, id, message string) error {
	now := time.Now()
	_, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": message,
			"processed_at":  now,
			"updated_at":    now,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark document %s failed: %w", id, err)
	}
	return nil
}

// UpsertMetadata writes the extraction/transform output keyed by document id.
// Missing optional fields stay null rather than blocking the upsert.
func (s *MongoStore) UpsertMetadata(ctx context.Context, meta *models.DocumentMetadata) error {
	meta.UpdatedAt = time.Now()

	_, err := s.metadata.UpdateOne(ctx,
		bson.M{"_id": meta.DocumentID},
		bson.M{"$set": meta},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert metadata for %s: %w", meta.DocumentID, err)
	}
	return nil
}

// SetRenderableContent records the object path of the converted PDF so the UI
// can offer the converted rendering. Idempotent.
func (s *MongoStore) SetRenderableContent(ctx context.Context, id, objectPath string) error {
	_, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"renderable_content": objectPath,
			"updated_at":         time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set renderable content for %s: %w", id, err)
	}
	return nil
}

// SetEmbeddingStats records a successful vector upsert.
func (s *MongoStore) SetEmbeddingStats(ctx context.Context, id string, chunksCount int) error {
	_, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"embeddings_generated": true,
			"chunks_count":         chunksCount,
			"updated_at":           time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set embedding stats for %s: %w", id, err)
	}
	return nil
}

// MergeSlideImages folds uploaded image URLs into the persisted slide data,
// matched on slide number. This is the only metadata mutation allowed after
// job completion, and it never touches document status.
func (s *MongoStore) MergeSlideImages(ctx context.Context, id string, imagesBySlide map[int][]string) error {
	for slideNumber, urls := range imagesBySlide {
		_, err := s.metadata.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{
				"slides_data.$[slide].image_urls": urls,
				"updated_at":                      time.Now(),
			}},
			options.Update().SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{bson.M{"slide.slide_number": slideNumber}},
			}))
		if err != nil {
			return fmt.Errorf("failed to merge images for slide %d of %s: %w", slideNumber, id, err)
		}
	}
	return nil
}

// FailStalePending fails out documents stuck in pending past the deadline,
// covering worker crashes that never reached the status finalizer.
func (s *MongoStore) FailStalePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.documents.UpdateMany(ctx,
		bson.M{
			"status":     models.StatusPending,
			"created_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": "ingestion did not complete",
			"updated_at":    time.Now(),
		}})
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale pending documents: %w", err)
	}

	return result.ModifiedCount, nil
}
