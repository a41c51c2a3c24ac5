package pagestore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 三个逻辑视图的缓存键。保存/发布成功后这三个键会被删除，
// 宿主层按键重建缓存。
const (
	editorCacheKeyFormat  = "page:editor:%d"
	previewCacheKeyFormat = "page:preview:%d"
	publicCacheKeyFormat  = "page:public:%d"
)

// RedisInvalidator 通过删除 Redis 键使三个页面视图过期。
type RedisInvalidator struct {
	client redis.UniversalClient
}

// NewRedisInvalidator 构造基于 Redis 的失效器。
func NewRedisInvalidator(client redis.UniversalClient) *RedisInvalidator {
	return &RedisInvalidator{client: client}
}

// InvalidatePage 实现 CacheInvalidator。
func (r *RedisInvalidator) InvalidatePage(ctx context.Context, companyID uint) error {
	keys := []string{
		fmt.Sprintf(editorCacheKeyFormat, companyID),
		fmt.Sprintf(previewCacheKeyFormat, companyID),
		fmt.Sprintf(publicCacheKeyFormat, companyID),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete page cache keys: %w", err)
	}
	return nil
}
