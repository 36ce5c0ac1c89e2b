package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"video_ingest_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss key not in redis
var ErrCacheMiss = errors.New("redis.Nil")

// RedisRepository 定义接口
type RedisRepository[T any] interface {
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Get(ctx context.Context, key string) (T, error)
	Del(ctx context.Context, key string) error
}

type redisRepository[T any] struct {
	client redis.UniversalClient
}

// NewRedisClient single node or sentinel, depending on the connection
func NewRedisClient(c RedisConnection) (redis.UniversalClient, error) {
	var rdb redis.UniversalClient
	if len(c.SentinelAddrs) > 0 {
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    c.MasterName,
			SentinelAddrs: c.SentinelAddrs,
			DB:            c.DB,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr: c.Addr,
			DB:   c.DB,
		})
	}

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// NewRedisRepository JSON cache on top of client
func NewRedisRepository[T any](client redis.UniversalClient) RedisRepository[T] {
	return &redisRepository[T]{client: client}
}

func (r *redisRepository[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisRepository[T]) Get(ctx context.Context, key string) (T, error) {
	var zeroValue T
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return zeroValue, ErrCacheMiss
	} else if err != nil {
		return zeroValue, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	var result T
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		logger.Log.Warn("drop undecodable cache entry", zap.String("key", key), zap.Error(err))
		return zeroValue, ErrCacheMiss
	}
	return result, nil
}

func (r *redisRepository[T]) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
