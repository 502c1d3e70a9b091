// Package redis holds the shared connection to the cache/pubsub tier
// and the keyspace conventions for it. Every key this module writes
// lives under the "pt:" prefix so a shared redis instance stays
// inspectable.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prototrack/prototrack/pkg/config"
)

const (
	keyspace    = "pt"
	pingTimeout = 5 * time.Second
)

// Key builds a namespaced redis key: Key("permissions", id) is
// "pt:permissions:<id>".
func Key(parts ...string) string {
	return keyspace + ":" + strings.Join(parts, ":")
}

type Client struct {
	rdb redis.UniversalClient
}

// NewClient connects and verifies the connection with a bounded ping;
// a redis that is down at startup fails fast instead of at first use.
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 {
		addresses = []string{"localhost:6379"}
	}

	var rdb redis.UniversalClient
	if cfg.ClusterMode {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addresses,
			Password: cfg.Password,
			PoolSize: cfg.PoolSize,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addresses[0],
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", strings.Join(addresses, ","), err)
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Client() redis.UniversalClient {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
