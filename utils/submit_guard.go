package utils

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/grokshare/config"
)

const guardTimeout = 500 * time.Millisecond

func guardKey(parts ...string) string {
	return "guard:" + strings.Join(parts, ":")
}

func dayKey(ip string, now time.Time) string {
	return guardKey("day", ip, now.Format("20060102"))
}

// untilNextMidnight is the time left in now's calendar day, in now's location.
func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}

// SubmitCooldownActive reports whether ip shared something within the cooldown window.
// It only reads; the window opens with SubmitCooldownStart once a share is stored.
// Every guard here fails open when Redis is missing or erroring.
func SubmitCooldownActive(ip string) bool {
	if config.Get().SubmitCooldownSec <= 0 {
		return false
	}
	active := false
	withRedis(guardTimeout, func(ctx context.Context, rc *redis.Client) {
		n, err := rc.Exists(ctx, guardKey("cooldown", ip)).Result()
		active = err == nil && n > 0
	})
	return active
}

// SubmitCooldownStart opens the cooldown window for ip.
func SubmitCooldownStart(ip string) {
	sec := config.Get().SubmitCooldownSec
	if sec <= 0 {
		return
	}
	withRedis(guardTimeout, func(ctx context.Context, rc *redis.Client) {
		_ = rc.Set(ctx, guardKey("cooldown", ip), "1", time.Duration(sec)*time.Second).Err()
	})
}

// SubmitDailyLimitCheck allows up to N accepted submissions per day per IP.
func SubmitDailyLimitCheck(ip string) bool {
	limit := config.Get().SubmitMaxPerIPPerDay
	if limit <= 0 {
		return true
	}
	allowed := true
	withRedis(guardTimeout, func(ctx context.Context, rc *redis.Client) {
		n, err := rc.Get(ctx, dayKey(ip, time.Now())).Int()
		if errors.Is(err, redis.Nil) {
			return
		}
		allowed = err != nil || n < limit
	})
	return allowed
}

// SubmitDailyIncrement counts an accepted submission for today.
func SubmitDailyIncrement(ip string) {
	withRedis(guardTimeout, func(ctx context.Context, rc *redis.Client) {
		now := time.Now()
		key := dayKey(ip, now)
		if err := rc.Incr(ctx, key).Err(); err == nil {
			_ = rc.Expire(ctx, key, untilNextMidnight(now)).Err()
		}
	})
}

// ViewFirstSeen reports whether this client has not viewed the post within the dedupe window.
func ViewFirstSeen(postID, clientID string) bool {
	minutes := config.Get().ViewDedupeMinutes
	if minutes <= 0 || clientID == "" {
		return true
	}
	first := true
	withRedis(guardTimeout, func(ctx context.Context, rc *redis.Client) {
		ok, err := rc.SetNX(ctx, guardKey("view", postID, clientID), "1", time.Duration(minutes)*time.Minute).Result()
		first = err != nil || ok
	})
	return first
}
