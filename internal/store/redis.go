package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/models"
)

const (
	redisSettingsKey = "hydronutri:controller:settings"
	redisLogsKey     = "hydronutri:controller:logs"
)

// RedisStore keeps settings and the audit log in Redis. The log is a capped
// list: newest entry first, trimmed to MaxLogEntries.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) GetSettings(ctx context.Context) (models.Settings, error) {
	val, err := s.client.Get(ctx, redisSettingsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return models.DefaultSettings(), nil
		}
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(val), &settings); err != nil {
		return models.Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return settings, nil
}

func (s *RedisStore) PutSettings(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := s.client.Set(ctx, redisSettingsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set settings: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendLog(ctx context.Context, entry models.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, redisLogsKey, data)
	pipe.LTrim(ctx, redisLogsKey, 0, MaxLogEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

func (s *RedisStore) GetLogs(ctx context.Context) ([]models.LogEntry, error) {
	vals, err := s.client.LRange(ctx, redisLogsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read logs: %w", err)
	}

	// LPUSH stores newest first; return oldest first.
	entries := make([]models.LogEntry, 0, len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		var entry models.LogEntry
		if err := json.Unmarshal([]byte(vals[i]), &entry); err != nil {
			s.logger.Warn("Skipping undecodable log entry", zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
