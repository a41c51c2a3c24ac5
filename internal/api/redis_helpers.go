package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// overHourlyLimit 用固定窗口计数判断 key 是否超出每小时配额。
// Redis 不可用时放行，限流失效好过整条链路不可用。
func overHourlyLimit(ctx context.Context, client redisRateCounter, key string, limit int) bool {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return false
	}
	if count == 1 {
		_ = client.Expire(ctx, key, time.Hour).Err()
	}
	return count > int64(limit)
}
