package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crownlabs/academy-idp/internal/config"
	"github.com/crownlabs/academy-idp/pkg/logaction"
	"github.com/crownlabs/academy-idp/pkg/logger"
	"github.com/crownlabs/academy-idp/pkg/mlog"
)

type IRedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping() error
	Close() error
}

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(cfg *config.RedisConfig) (IRedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: rdb}, nil
}

func (c *RedisClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	log := mlog.L(ctx)
	start := time.Now()

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: "redis",
	}).Debug(logaction.DB_REQUEST(logaction.DB_READ, "redis GET"), map[string]any{
		"key": key,
	})

	val, err := c.client.Get(ctx, key).Result()
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	switch {
	case err == redis.Nil:
		result["data"] = nil
		err = ErrNotFound
	case err != nil:
		result["error"] = err.Error()
	default:
		result["data"] = val
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "redis",
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_READ, "redis GET"), result, logger.MaskingRule{
		Field: "data.privateKey", Type: logger.MaskingTypeFull,
	})

	return val, err
}

func (c *RedisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	log := mlog.L(ctx)
	start := time.Now()

	// cached structs are stored as JSON so Get can unmarshal them back
	if _, ok := value.(string); !ok {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		value = string(raw)
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: "redis",
	}).Debug(logaction.DB_REQUEST(logaction.DB_CREATE, "redis SET"), map[string]any{
		"key":        key,
		"expiration": expiration.String(),
	})

	err := c.client.Set(ctx, key, value, expiration).Err()
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = "OK"
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "redis",
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_CREATE, "redis SET"), result)

	return err
}

func (c *RedisClient) Del(ctx context.Context, keys ...string) error {
	log := mlog.L(ctx)
	start := time.Now()

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: "redis",
	}).Debug(logaction.DB_REQUEST(logaction.DB_DELETE, "redis DEL"), map[string]any{
		"keys": keys,
	})

	err := c.client.Del(ctx, keys...).Err()
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = "OK"
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "redis",
		ResponseTime: elapsedMs,
	}).Debug(logaction.DB_RESPONSE(logaction.DB_DELETE, "redis DEL"), result)

	return err
}
