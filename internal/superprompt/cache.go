package superprompt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ki2go/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ResolveCache 解析结果的 Redis 缓存
//
// 键空间按 (基础模板, 组织, 用户) 组合划分；任何影响该基础模板
// 的 Override 变更都会按前缀整体失效。缓存仅是加速层：
// 读写失败一律静默降级为数据库查询。
type ResolveCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewResolveCache 创建解析缓存
// ttlSeconds <= 0 时默认 60 秒。
func NewResolveCache(rdb redis.UniversalClient, ttlSeconds int) *ResolveCache {
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}
	return &ResolveCache{rdb: rdb, ttl: time.Duration(ttlSeconds) * time.Second}
}

func cacheKey(baseTemplateID, organizationID, userID string) string {
	return fmt.Sprintf("ki2go:resolve:%s:%s:%s", baseTemplateID, organizationID, userID)
}

// Get 查询缓存的解析结果，未命中或未启用返回 (nil, false)
func (c *ResolveCache) Get(ctx context.Context, baseTemplateID, organizationID, userID string) (*Resolution, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, cacheKey(baseTemplateID, organizationID, userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var res Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	return &res, true
}

// Set 写入解析结果
func (c *ResolveCache) Set(ctx context.Context, baseTemplateID, organizationID, userID string, res *Resolution) {
	if c == nil || c.rdb == nil || res == nil {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(baseTemplateID, organizationID, userID), data, c.ttl).Err(); err != nil {
		logger.Warn("解析缓存写入失败", zap.Error(err))
	}
}

// Invalidate 按基础模板前缀整体失效
// 与触发它的写操作不在同一事务内，接受短暂（TTL 内）的读旧值。
func (c *ResolveCache) Invalidate(ctx context.Context, baseTemplateID string) {
	if c == nil || c.rdb == nil {
		return
	}

	pattern := fmt.Sprintf("ki2go:resolve:%s:*", baseTemplateID)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn("解析缓存失效扫描失败", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			logger.Warn("解析缓存删除失败", zap.Error(err))
		}
	}
}
