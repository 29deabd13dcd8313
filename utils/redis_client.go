package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/grokshare/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
	redisMu     sync.RWMutex
)

// GetRedis returns a singleton Redis client based on loaded config.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		redisMu.Lock()
		defer redisMu.Unlock()
		if redisClient != nil {
			return
		}
		cfg := config.Get()
		redisClient = redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		// ping only to surface misconfiguration early; callers fail open
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			Sugar.Warnf("redis ping failed: %v", err)
		}
	})
	redisMu.RLock()
	defer redisMu.RUnlock()
	return redisClient
}

// SetRedis installs an already configured client, e.g. one pointing at miniredis in tests.
func SetRedis(c *redis.Client) {
	redisOnce.Do(func() {})
	redisMu.Lock()
	redisClient = c
	redisMu.Unlock()
}
