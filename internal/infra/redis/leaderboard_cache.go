package redis

import (
	"context"
	"encoding/json"
	"time"

	"ecolearn-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LeaderboardCache stores computed leaderboard pages as short-lived JSON
// snapshots keyed by period and page size. It only ever accelerates reads;
// User records remain the source of truth, so a snapshot is allowed to lag
// the last XP commit by up to its TTL.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) GetSnapshot(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

func (c *LeaderboardCache) StoreSnapshot(ctx context.Context, key string, entries []domain.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, c.ttl).Err()
}

func (c *LeaderboardCache) key(key string) string {
	return "leaderboard:" + key
}
