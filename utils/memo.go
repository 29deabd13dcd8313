package utils

import (
	"context"
	"time"
)

// RedisMemo remembers resolved media URLs in Redis. Errors are treated as misses.
type RedisMemo struct {
	ttl time.Duration
}

// NewRedisMemo returns a memo whose entries expire after ttl.
func NewRedisMemo(ttl time.Duration) *RedisMemo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisMemo{ttl: ttl}
}

func (m *RedisMemo) Get(ctx context.Context, key string) (string, bool) {
	rc := GetRedis()
	if rc == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	v, err := rc.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (m *RedisMemo) Set(ctx context.Context, key, value string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := rc.Set(ctx, key, value, m.ttl).Err(); err != nil {
		Sugar.Debugf("media memo set failed key=%s err=%v", key, err)
	}
}
