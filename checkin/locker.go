package checkin

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locker は複数プロセス間で掃除ジョブの重複実行を避けるためのロック
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker は SETNX でロックを取る。解放はせず TTL で自然に切れる。
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

// NopLocker は常にロックを取れる。Redisなしで動かすとき用。
type NopLocker struct{}

func (NopLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
