package history

import (
	"context"

	"kontratago/internal/redis"
)

const redisHistoryKey = "kontrata:history"

// RedisStore keeps the serialized history under one redis key, for
// deployments where the gateway itself is stateless.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	raw, err := s.client.Get(ctx, redisHistoryKey)
	if err == redis.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, redisHistoryKey, data, 0)
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, redisHistoryKey)
}
