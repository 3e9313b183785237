package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"deepresearch/internal/app"
)

// DetailCache keeps terminal detail bundles in Redis for the poll path.
// Terminal sessions never change, so the TTL only bounds memory, not
// staleness. Non-terminal details are never cached.
type DetailCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewDetailCache(client *redisv9.Client, ttl time.Duration) *DetailCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DetailCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *DetailCache) GetDetail(ctx context.Context, sessionID string) (*app.ResearchDetail, bool, error) {
	raw, err := c.client.Get(ctx, c.detailKey(sessionID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get detail failed: %w", err)
	}

	var detail app.ResearchDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached detail failed: %w", err)
	}
	return &detail, true, nil
}

func (c *DetailCache) SetDetail(ctx context.Context, sessionID string, detail *app.ResearchDetail) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal detail cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.detailKey(sessionID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set detail failed: %w", err)
	}
	return nil
}

func (c *DetailCache) detailKey(sessionID string) string {
	return fmt.Sprintf("research:detail:%s", sessionID)
}
