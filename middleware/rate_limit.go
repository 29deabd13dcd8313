package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/grokshare/utils"
)

const limiterIdle = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

type limiterSet struct {
	mu    sync.Mutex
	items map[string]*rateLimiter
	limit rate.Limit
	burst int
}

// RateLimit applies a per-IP token bucket allowing perMinute requests per minute.
func RateLimit(perMinute int) gin.HandlerFunc {
	perMinute = max(perMinute, 1)
	set := &limiterSet{
		items: map[string]*rateLimiter{},
		limit: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: max(perMinute/2, 1),
	}

	return func(ctx *gin.Context) {
		if !set.allow(ClientIP(ctx)) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, l := range s.items {
		if now.After(l.expires) {
			delete(s.items, k)
		}
	}

	l, ok := s.items[key]
	if !ok {
		l = &rateLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.items[key] = l
	}
	l.expires = now.Add(limiterIdle)
	return l.limiter.Allow()
}
