package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Checkout idempotency fast path: idem:checkout:{user_id}:{key} -> order_id
	KeyIdemCheckout = "idem:checkout:%d:%s"

	// Order status cache: order_status:{order_id} -> status string
	KeyOrderStatus = "order_status:%d"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// GetString is a cache read that treats every Redis failure as a miss; the
// database stays the source of truth.
func GetString(ctx context.Context, rdb *redis.Client, key string) (string, bool) {
	if rdb == nil {
		return "", false
	}
	v, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

// SetString is a best-effort cache write.
func SetString(ctx context.Context, rdb *redis.Client, key, value string, ttl time.Duration) {
	if rdb == nil {
		return
	}
	_ = rdb.Set(ctx, key, value, ttl).Err()
}
