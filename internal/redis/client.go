// Package redisclient owns the Redis connection and the per-doctor
// calendar lock built on it.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientConfig carries the connection settings the booking engine needs
// from Redis. A zero PoolSize takes the default.
type ClientConfig struct {
	Addr     string
	Username string
	Password string
	PoolSize int
}

// NewRedisClient connects and pings; lock acquisition must fail fast, so
// the read/write timeouts stay tight.
func NewRedisClient(cc ClientConfig) (*redis.Client, error) {
	if cc.PoolSize <= 0 {
		cc.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cc.Addr,
		Username:     cc.Username,
		Password:     cc.Password,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     cc.PoolSize,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
