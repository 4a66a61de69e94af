package explain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/xai-bench/internal/model"
)

const (
	// 解释结果在 Redis 中的 key 前缀
	explanationKeyPrefix = "explanation:"
)

// ResultCache 已完成全局解释的 Redis 缓存
// redis 客户端为 nil 时缓存退化为直通
type ResultCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewResultCache 创建解释结果缓存
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{redis: client, ttl: ttl}
}

// cachedExplanation 缓存载荷
type cachedExplanation struct {
	ExplanationID     string                 `json:"explanation_id"`
	FeatureImportance map[string]float64     `json:"feature_importance"`
	Payload           map[string]interface{} `json:"payload"`
	BaseValue         float64                `json:"base_value"`
	SampleSize        int                    `json:"sample_size"`
}

func cacheKey(modelID string, method model.ExplanationMethod, scope model.ExplanationScope, sampleSize int) string {
	return fmt.Sprintf("%s%s:%s:%s:%d", explanationKeyPrefix, modelID, method, scope, sampleSize)
}

// KeyFor 返回解释记录对应的缓存 key
func (c *ResultCache) KeyFor(e *model.Explanation) string {
	return cacheKey(e.ModelID, e.Method, e.Scope, e.SampleSize)
}

// TTL 返回缓存有效期
func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}

// Get 查找缓存的解释结果
func (c *ResultCache) Get(ctx context.Context, modelID string, method model.ExplanationMethod, scope model.ExplanationScope, sampleSize int) (*cachedExplanation, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, cacheKey(modelID, method, scope, sampleSize)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("explanation cache get: %v", err)
		}
		return nil, false
	}
	var cached cachedExplanation
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		log.Printf("explanation cache decode: %v", err)
		return nil, false
	}
	return &cached, true
}

// Put 写入解释结果，失败仅记录日志
func (c *ResultCache) Put(ctx context.Context, e *model.Explanation) {
	if c.redis == nil || e.Status != model.ExplanationStatusCompleted {
		return
	}
	cached := cachedExplanation{
		ExplanationID:     e.ID,
		FeatureImportance: e.FeatureImportance,
		Payload:           e.Payload,
		BaseValue:         e.BaseValue,
		SampleSize:        e.SampleSize,
	}
	data, err := json.Marshal(cached)
	if err != nil {
		log.Printf("explanation cache encode: %v", err)
		return
	}
	key := cacheKey(e.ModelID, e.Method, e.Scope, e.SampleSize)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("explanation cache set: %v", err)
	}
}

// InvalidateModel 删除某模型的全部缓存结果
func (c *ResultCache) InvalidateModel(ctx context.Context, modelID string) {
	if c.redis == nil {
		return
	}
	pattern := explanationKeyPrefix + modelID + ":*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("explanation cache delete %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("explanation cache scan: %v", err)
	}
}
