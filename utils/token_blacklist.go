package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "admin:revoked:"

var (
	blacklist   = map[string]time.Time{}
	blacklistMu sync.RWMutex
)

// BlacklistToken revokes an admin session id until its natural expiration.
func BlacklistToken(tokenID string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 || tokenID == "" {
		return
	}
	stored := false
	withRedis(2*time.Second, func(ctx context.Context, rc *redis.Client) {
		stored = rc.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err() == nil
	})
	if stored {
		return
	}
	// redis unavailable: keep it in process memory
	blacklistMu.Lock()
	blacklist[tokenID] = expiresAt
	blacklistMu.Unlock()
}

// IsTokenBlacklisted reports whether a session id was revoked before it expired.
// Redis errors count as not revoked.
func IsTokenBlacklisted(tokenID string) bool {
	blacklistMu.RLock()
	exp, ok := blacklist[tokenID]
	blacklistMu.RUnlock()
	if ok {
		if time.Now().Before(exp) {
			return true
		}
		blacklistMu.Lock()
		delete(blacklist, tokenID)
		blacklistMu.Unlock()
	}

	revoked := false
	withRedis(2*time.Second, func(ctx context.Context, rc *redis.Client) {
		n, err := rc.Exists(ctx, blacklistPrefix+tokenID).Result()
		revoked = err == nil && n > 0
	})
	return revoked
}
