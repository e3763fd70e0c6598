package queue

import (
	"strings"

	"github.com/hibiken/asynq"

	"knowledgebase-platform/internal/config"
)

// RedisConnOpt builds the asynq connection options from config, accepting
// either a full redis:// URL or a bare host:port.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return asynq.ParseRedisURI(cfg.RedisURL)
	}

	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
