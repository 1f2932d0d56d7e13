package oracle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedSource decorates a Source with a short-lived redis cache. The
// TTL matches the staleness policy, so a cache hit can still fail the
// gate but never outlives it. Cache errors fall through to the
// underlying source.
type CachedSource struct {
	Next   Source
	Redis  *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func (c *CachedSource) GetQuote(ctx context.Context, assetID string) (Quote, error) {
	if c.Redis == nil {
		return c.Next.GetQuote(ctx, assetID)
	}
	key := "oracle:quote:" + assetID
	if raw, err := c.Redis.Get(ctx, key).Bytes(); err == nil {
		var q Quote
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, nil
		}
	}
	q, err := c.Next.GetQuote(ctx, assetID)
	if err != nil {
		return Quote{}, err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultMaxQuoteAge
	}
	raw, _ := json.Marshal(q)
	if err := c.Redis.Set(ctx, key, raw, ttl).Err(); err != nil && c.Logger != nil {
		c.Logger.Debug("quote cache write failed", zap.String("asset", assetID), zap.Error(err))
	}
	return q, nil
}
