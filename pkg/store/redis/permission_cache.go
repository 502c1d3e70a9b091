package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// PermissionCache holds per-user permission-set snapshots. Entries are
// read-mostly; writers invalidate on role or permission changes and the
// TTL bounds staleness either way.
type PermissionCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewPermissionCache(client *Client, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PermissionCache{rdb: client.Client(), ttl: ttl}
}

func (c *PermissionCache) Get(ctx context.Context, userID string) ([]string, bool) {
	payload, err := c.rdb.Get(ctx, Key("permissions", userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(payload, &names); err != nil {
		return nil, false
	}
	return names, true
}

func (c *PermissionCache) Set(ctx context.Context, userID string, names []string) {
	if names == nil {
		names = []string{}
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, Key("permissions", userID), payload, c.ttl).Err()
}

func (c *PermissionCache) Invalidate(ctx context.Context, userIDs ...string) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, Key("permissions", id))
	}
	if len(keys) > 0 {
		_ = c.rdb.Del(ctx, keys...).Err()
	}
}
