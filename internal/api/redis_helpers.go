package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRateCounter 是计数限流所需的命令。
type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// redisKV 是处理器用到的 Redis 命令子集，redis.UniversalClient 满足它。
type redisKV interface {
	redisRateCounter
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// incrWithTTL 自增计数，首次出现时设置过期时间，得到固定窗口计数器。
func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// overLimit 报告窗口内计数是否超过 limit；limit<=0 表示不限，Redis 不可用时放行。
func overLimit(ctx context.Context, client redisRateCounter, key string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return false
	}
	count, err := incrWithTTL(ctx, client, key, window)
	return err == nil && count > int64(limit)
}

// lockedFor 返回 key 剩余的锁定时间；未锁定或 Redis 不可用时返回 0。
func lockedFor(ctx context.Context, client redisKV, key string) time.Duration {
	ttl, err := client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return 0
	}
	return ttl
}
