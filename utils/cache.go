package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Hour
	scanBatch       = 500
	maxScanRounds   = 20

	// CacheKeyPosts prefixes every cached gallery list page.
	CacheKeyPosts = "cache:posts:"
	// CacheKeyStats holds the cached site statistics.
	CacheKeyStats = "cache:stats"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// withRedis runs fn against the shared client under a bounded context.
// It reports false when Redis is not configured.
func withRedis(timeout time.Duration, fn func(ctx context.Context, rc *redis.Client)) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	fn(ctx, rc)
	return true
}

// CacheGetBytes returns the cached bytes stored under key.
func CacheGetBytes(key string) ([]byte, bool) {
	var (
		b   []byte
		err error = redis.Nil
	)
	withRedis(2*time.Second, func(ctx context.Context, rc *redis.Client) {
		b, err = rc.Get(ctx, key).Bytes()
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// CacheSetJSON marshals v and stores it for ttl, one hour when ttl is not positive.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		Sugar.Warnf("cache encode failed key=%s err=%v", key, err)
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	withRedis(2*time.Second, func(ctx context.Context, rc *redis.Client) {
		if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
	})
}

// InvalidatePrefixes deletes every key under the given prefixes and returns how many went.
// Scanning stops after maxScanRounds per prefix.
func InvalidatePrefixes(prefixes ...string) int {
	removed := 0
	withRedis(3*time.Second, func(ctx context.Context, rc *redis.Client) {
		for _, prefix := range prefixes {
			var cursor uint64
			for round := 0; round < maxScanRounds; round++ {
				keys, next, err := rc.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
				if err != nil {
					Sugar.Warnf("cache scan failed prefix=%s err=%v", prefix, err)
					break
				}
				if len(keys) > 0 {
					n, err := rc.Del(ctx, keys...).Result()
					if err != nil {
						Sugar.Warnf("cache delete failed prefix=%s err=%v", prefix, err)
					}
					removed += int(n)
				}
				cursor = next
				if cursor == 0 {
					break
				}
			}
		}
	})
	return removed
}

// InvalidateGallery drops every cached list page and the stats snapshot.
func InvalidateGallery() {
	if n := InvalidatePrefixes(CacheKeyPosts, CacheKeyStats); n > 0 {
		Sugar.Debugf("gallery cache invalidated keys=%d", n)
	}
}
