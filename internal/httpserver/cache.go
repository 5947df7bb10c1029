package httpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kashiralabs/fieldbook/pkg/booking"
)

// slotCache holds rendered slot-availability responses in redis keyed by
// field and date. A nil redis client disables caching entirely; cache errors
// degrade to a miss and never fail the request.
type slotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func newSlotCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *slotCache {
	if client == nil {
		return nil
	}
	return &slotCache{client: client, ttl: ttl, logger: logger}
}

func slotCacheKey(fieldID string, date booking.Date) string {
	return fmt.Sprintf("slots:%s:%s", fieldID, date.String())
}

func (cache *slotCache) Get(ctx context.Context, fieldID string, date booking.Date) ([]byte, bool) {
	if cache == nil {
		return nil, false
	}
	payload, err := cache.client.Get(ctx, slotCacheKey(fieldID, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cache.logger.Warn("slot cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

func (cache *slotCache) Set(ctx context.Context, fieldID string, date booking.Date, payload []byte) {
	if cache == nil {
		return
	}
	if err := cache.client.Set(ctx, slotCacheKey(fieldID, date), payload, cache.ttl).Err(); err != nil {
		cache.logger.Warn("slot cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached availability for one field and date. Called
// after any mutation that changes slot occupancy.
func (cache *slotCache) Invalidate(ctx context.Context, fieldID string, date booking.Date) {
	if cache == nil {
		return
	}
	if err := cache.client.Del(ctx, slotCacheKey(fieldID, date)).Err(); err != nil {
		cache.logger.Warn("slot cache invalidation failed", zap.Error(err))
	}
}
