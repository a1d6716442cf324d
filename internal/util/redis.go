package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crolars/internal/config"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()

	// Test connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: rdb,
		ctx:    ctx,
	}, nil
}

// NewRedisClientFrom wraps an existing go-redis client
func NewRedisClientFrom(rdb *redis.Client) *RedisClient {
	return &RedisClient{client: rdb, ctx: context.Background()}
}

// Get retrieves a value from Redis by key
func (r *RedisClient) Get(key string) (string, error) {
	val, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a value in Redis with expiration; non-strings are stored as JSON
func (r *RedisClient) Set(key string, value interface{}, expiration time.Duration) error {
	var val string
	switch v := value.(type) {
	case string:
		val = v
	default:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		val = string(jsonBytes)
	}

	return r.client.Set(r.ctx, key, val, expiration).Err()
}

// Delete removes keys from Redis
func (r *RedisClient) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(r.ctx, keys...).Err()
}

// DeletePattern removes all keys matching a pattern
func (r *RedisClient) DeletePattern(pattern string) error {
	iter := r.client.Scan(r.ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(r.ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return r.Delete(keys...)
}

// ZSet sets the score of a member in a sorted set
func (r *RedisClient) ZSet(key string, score float64, member string) error {
	return r.client.ZAdd(r.ctx, key, redis.Z{
		Score:  score,
		Member: member,
	}).Err()
}

// ZRaise adds members, only ever increasing the score of existing ones
func (r *RedisClient) ZRaise(key string, members ...redis.Z) error {
	if len(members) == 0 {
		return nil
	}
	return r.client.ZAddGT(r.ctx, key, members...).Err()
}

// ZCard returns the number of members in a sorted set
func (r *RedisClient) ZCard(key string) (int64, error) {
	return r.client.ZCard(r.ctx, key).Result()
}

// ZTop returns the highest scored members, best first
func (r *RedisClient) ZTop(key string, limit int64) ([]redis.Z, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.client.ZRevRangeWithScores(r.ctx, key, 0, limit-1).Result()
}

// ZRank returns the zero-based descending rank of a member
func (r *RedisClient) ZRank(key, member string) (int64, error) {
	rank, err := r.client.ZRevRank(r.ctx, key, member).Result()
	if err == redis.Nil {
		return -1, ErrCacheMiss
	}
	return rank, err
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}
