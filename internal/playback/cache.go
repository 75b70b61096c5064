package playback

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	redislib "github.com/redis/go-redis/v9"
)

const resolveCacheKeyPrefix = "playback:resolved:"

// ResolveCache keeps resolved track descriptors in redis for a bounded TTL
// so rapid queue expansion does not re-hit the catalog for tracks the user
// just browsed. Best effort: any redis failure is treated as a miss.
type ResolveCache struct {
	client *redislib.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewResolveCache(client *redislib.Client, ttl time.Duration, logger *log.Logger) *ResolveCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResolveCache{
		client: client,
		ttl:    ttl,
		logger: logger.WithPrefix("resolve-cache"),
	}
}

func (c *ResolveCache) Get(ctx context.Context, id string) (*ResolvedTrack, bool) {
	if c == nil || c.client == nil || id == "" {
		return nil, false
	}

	raw, err := c.client.Get(ctx, resolveCacheKey(id)).Bytes()
	if err != nil {
		if err != redislib.Nil {
			c.logger.Debug("cache read failed", "id", id, "err", err)
		}
		return nil, false
	}

	var track ResolvedTrack
	if err := json.Unmarshal(raw, &track); err != nil {
		c.logger.Debug("cache payload corrupt, dropping", "id", id, "err", err)
		_ = c.client.Del(ctx, resolveCacheKey(id)).Err()
		return nil, false
	}

	return &track, true
}

func (c *ResolveCache) Put(ctx context.Context, track *ResolvedTrack) {
	if c == nil || c.client == nil || track == nil || track.ID == "" {
		return
	}

	payload, err := json.Marshal(track)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, resolveCacheKey(track.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Debug("cache write failed", "id", track.ID, "err", err)
	}
}

func resolveCacheKey(id string) string {
	return resolveCacheKeyPrefix + id
}
