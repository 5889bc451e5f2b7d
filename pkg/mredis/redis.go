// Package mredis is a thin connection hub over go-redis, grounded on the
// teacher's mredis connector.
package mredis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/creatorplatform/gateway-core/pkg/mlog"
)

// Connection lazily dials a Redis client and keeps it as a singleton.
type Connection struct {
	Addr     string
	Password string
	DB       int
	Logger   mlog.Logger

	client    *redis.Client
	connected bool
}

// Client returns the underlying *redis.Client, connecting lazily.
func (c *Connection) Client(ctx context.Context) (*redis.Client, error) {
	if !c.connected {
		client := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}

		c.client = client
		c.connected = true

		c.Logger.Info("connected to redis")
	}

	return c.client, nil
}
