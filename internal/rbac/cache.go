package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache stores resolved permission snapshots in Redis so a
// principal's set is loaded once per session lifetime rather than on
// every check.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache instantiates the cache helper.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(roleID int64) string {
	return fmt.Sprintf("rbac:snapshot:%d", roleID)
}

// Get returns the cached snapshot for a role; ok is false on miss.
func (c *SnapshotCache) Get(ctx context.Context, roleID int64) (PermissionSet, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	payload, err := c.client.Get(ctx, snapshotKey(roleID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var set PermissionSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return nil, false, err
	}
	return set, true, nil
}

// Set stores a snapshot with the configured TTL.
func (c *SnapshotCache) Set(ctx context.Context, roleID int64, set PermissionSet) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(roleID), payload, c.ttl).Err()
}

// Invalidate drops the cached snapshot after role permissions change.
func (c *SnapshotCache) Invalidate(ctx context.Context, roleID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, snapshotKey(roleID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
