package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"knowledgebase-platform/internal/logger"
	"knowledgebase-platform/models"
)

// ProgressNotifier reports stage transitions to anyone watching. Both outputs
// are best-effort: progress never decides a job's outcome.
type ProgressNotifier interface {
	Notify(ctx context.Context, userID, documentID string, stage Stage, message string, progress int)
}

// RedisProgressNotifier publishes live events on a per-user channel and keeps
// a short-lived snapshot per document so a reconnecting client can recover
// the current state.
type RedisProgressNotifier struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProgressNotifier(rdb *redis.Client, ttl time.Duration) *RedisProgressNotifier {
	return &RedisProgressNotifier{
		rdb: rdb,
		ttl: ttl,
	}
}

// progressEvent is the live channel payload.
type progressEvent struct {
	DocumentID string `json:"document_id"`
	Progress   int    `json:"progress"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

func userChannel(userID string) string {
	return "user:" + userID + ":documents"
}

func progressKey(documentID string) string {
	return "progress:document:" + documentID
}

// Notify fires the live event and overwrites the durable snapshot. Absence of
// a live subscriber is not an error; redis failures are logged and swallowed.
func (n *RedisProgressNotifier) Notify(ctx context.Context, userID, documentID string, stage Stage, message string, progress int) {
	payload, err := json.Marshal(progressEvent{
		DocumentID: documentID,
		Progress:   progress,
		Stage:      string(stage),
		Message:    message,
	})
	if err != nil {
		logger.Error("failed to marshal progress event", "document_id", documentID, "error", err)
		return
	}

	if err := n.rdb.Publish(ctx, userChannel(userID), payload).Err(); err != nil {
		logger.Warn("failed to publish progress event", "document_id", documentID, "error", err)
	}

	snapshot, err := json.Marshal(models.ProgressRecord{
		Progress:  progress,
		Stage:     string(stage),
		Message:   message,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		logger.Error("failed to marshal progress snapshot", "document_id", documentID, "error", err)
		return
	}

	if err := n.rdb.Set(ctx, progressKey(documentID), snapshot, n.ttl).Err(); err != nil {
		logger.Warn("failed to write progress snapshot", "document_id", documentID, "error", err)
	}
}

// GetProgress loads the snapshot for a document, or nil when none exists (it
// expired or the job never started).
func (n *RedisProgressNotifier) GetProgress(ctx context.Context, documentID string) (*models.ProgressRecord, error) {
	raw, err := n.rdb.Get(ctx, progressKey(documentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read progress snapshot: %w", err)
	}

	var record models.ProgressRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode progress snapshot: %w", err)
	}

	return &record, nil
}
