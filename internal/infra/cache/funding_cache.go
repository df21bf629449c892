package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// funding:progress:{product_id} -> JSON
	keyFundingProgress = "funding:progress:%d"

	ttlFundingProgress = 30 * time.Second
)

// ファンディング進捗のリードキャッシュ。失敗はすべて飲み込む（DBが正）。
type FundingRedisCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewFundingRedisCache(rdb *redis.Client, log *zap.Logger) *FundingRedisCache {
	return &FundingRedisCache{rdb: rdb, log: log}
}

func (c *FundingRedisCache) GetProgress(ctx context.Context, productID int64) (usecase.FundingProgress, bool) {
	key := fmt.Sprintf(keyFundingProgress, productID)
	s, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("funding cache get failed", zap.Int64("product_id", productID), zap.Error(err))
		}
		return usecase.FundingProgress{}, false
	}

	var fp usecase.FundingProgress
	if err := json.Unmarshal([]byte(s), &fp); err != nil {
		return usecase.FundingProgress{}, false
	}
	return fp, true
}

func (c *FundingRedisCache) SetProgress(ctx context.Context, productID int64, fp usecase.FundingProgress) {
	b, err := json.Marshal(fp)
	if err != nil {
		return
	}
	key := fmt.Sprintf(keyFundingProgress, productID)
	if err := c.rdb.Set(ctx, key, b, ttlFundingProgress).Err(); err != nil {
		c.log.Warn("funding cache set failed", zap.Int64("product_id", productID), zap.Error(err))
	}
}

// 支援確定後に必ず呼ぶ（古い進捗を見せない）
func (c *FundingRedisCache) Invalidate(ctx context.Context, productID int64) {
	key := fmt.Sprintf(keyFundingProgress, productID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.Warn("funding cache invalidate failed", zap.Int64("product_id", productID), zap.Error(err))
	}
}
