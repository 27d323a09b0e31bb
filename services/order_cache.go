package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bunzstudio/storefront-backend/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	orderSessionCachePrefix = "order:session:"
	orderCacheTTL           = 15 * time.Minute
)

// OrderCache caches resolved order views keyed by checkout session. Orders
// are immutable apart from fulfillment status, so a short TTL is enough;
// status updates invalidate explicitly.
type OrderCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewOrderCache(client *redis.Client) *OrderCache {
	return &OrderCache{redis: client, ttl: orderCacheTTL}
}

func (c *OrderCache) GetOrderBySession(ctx context.Context, sessionID string) (*models.OrderView, bool) {
	data, err := c.redis.Get(ctx, orderSessionCachePrefix+sessionID).Result()
	if err != nil {
		return nil, false
	}

	var view models.OrderView
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		zap.L().Warn("failed to unmarshal cached order", zap.Error(err))
		return nil, false
	}
	return &view, true
}

// SetOrderBySessionAsync caches an order view off the request path.
func (c *OrderCache) SetOrderBySessionAsync(sessionID string, view *models.OrderView) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		payload, err := json.Marshal(view)
		if err != nil {
			zap.L().Warn("failed to marshal order for cache",
				zap.Error(err), zap.String("session_id", sessionID))
			return
		}
		if err := c.redis.Set(bgCtx, orderSessionCachePrefix+sessionID, payload, c.ttl).Err(); err != nil {
			zap.L().Warn("failed to cache order",
				zap.Error(err), zap.String("session_id", sessionID))
		}
	}()
}

// InvalidateSession drops the cached view after a status change.
func (c *OrderCache) InvalidateSession(ctx context.Context, sessionID string) {
	if err := c.redis.Del(ctx, orderSessionCachePrefix+sessionID).Err(); err != nil {
		zap.L().Warn("failed to delete cached order",
			zap.Error(err), zap.String("session_id", sessionID))
	}
}
