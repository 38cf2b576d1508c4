package database

import (
	"context"
	"fmt"
	"time"

	"admissions-lifecycle/internal/common/config"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client and a lock client on the same connection.
type RedisClient struct {
	Client *redis.Client
	Locker *redislock.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisClient{Client: rdb, Locker: redislock.New(rdb)}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
