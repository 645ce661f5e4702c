package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"smart-research-agent/internal/model"
)

// QueryCache keeps a session's recent queries in Redis so the session detail
// page does not hit MySQL on every poll. A short-lived dirty marker blocks
// repopulation while a research run is writing new rows.
type QueryCache struct {
	client         *redisv9.Client
	queryTTL       time.Duration
	dirtyMarkerTTL time.Duration
}

func NewQueryCache(client *redisv9.Client, queryTTL, dirtyMarkerTTL time.Duration) *QueryCache {
	if queryTTL <= 0 {
		queryTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &QueryCache{
		client:         client,
		queryTTL:       queryTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *QueryCache) GetQueries(ctx context.Context, sessionID string) ([]model.ResearchQuery, bool, error) {
	raw, err := c.client.Get(ctx, c.queryKey(sessionID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session queries failed: %w", err)
	}

	var queries []model.ResearchQuery
	if err := json.Unmarshal([]byte(raw), &queries); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached queries failed: %w", err)
	}
	return queries, true, nil
}

func (c *QueryCache) SetQueries(ctx context.Context, sessionID string, queries []model.ResearchQuery) error {
	payload, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("marshal query cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.queryKey(sessionID), payload, c.queryTTL).Err(); err != nil {
		return fmt.Errorf("redis set session queries failed: %w", err)
	}
	return nil
}

func (c *QueryCache) Invalidate(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, c.queryKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session queries failed: %w", err)
	}
	return nil
}

func (c *QueryCache) MarkDirty(ctx context.Context, sessionID string) error {
	if err := c.client.Set(ctx, c.dirtyKey(sessionID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *QueryCache) IsDirty(ctx context.Context, sessionID string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *QueryCache) queryKey(sessionID string) string {
	return fmt.Sprintf("research:queries:%s", sessionID)
}

func (c *QueryCache) dirtyKey(sessionID string) string {
	return fmt.Sprintf("research:queries:dirty:%s", sessionID)
}
