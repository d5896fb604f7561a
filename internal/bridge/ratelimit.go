package bridge

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles outbound Discord API calls with a Redis-backed
// token bucket, grounded on the teacher's internal/middleware.RateLimiter
// (github.com/redis/go-redis/v9, HMGet/HMSet-based refill). The teacher's
// version rejects an inbound HTTP request when its bucket is empty; a
// bridge has no inbound request to reject, so Wait blocks until a token
// frees up instead, keyed per bot token rather than per user id.
type RateLimiter struct {
	client   *redis.Client
	key      string
	capacity int64
	rate     float64 // tokens added per second
}

// NewRateLimiter constructs a limiter for botToken's outbound call
// budget. capacity and rate mirror Discord's global per-bot rate limit
// headroom closely enough to avoid 429s in steady state; burst beyond
// capacity still falls back to discordapi.Client's own 429/Retry-After
// handling.
func NewRateLimiter(client *redis.Client, botToken string, capacity int64, rate float64) *RateLimiter {
	return &RateLimiter{
		client:   client,
		key:      fmt.Sprintf("bridge:ratelimit:%s", shortHash(botToken)),
		capacity: capacity,
		rate:     rate,
	}
}

// Wait blocks until a token is available or ctx is canceled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, retryAfter, err := rl.tryConsume(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

func (rl *RateLimiter) tryConsume(ctx context.Context) (allowed bool, retryAfter time.Duration, err error) {
	val, err := rl.client.HMGet(ctx, rl.key, "tokens", "last_refill").Result()
	if err != nil {
		// Fail open: a Redis hiccup shouldn't stall every bridge egress.
		return true, 0, nil
	}

	tokens := float64(rl.capacity)
	lastRefill := time.Now()
	if val[0] != nil && val[1] != nil {
		if t, perr := strconv.ParseFloat(val[0].(string), 64); perr == nil {
			tokens = t
		}
		if t, perr := time.Parse(time.RFC3339Nano, val[1].(string)); perr == nil {
			lastRefill = t
		}
	}

	now := time.Now()
	tokens = math.Min(float64(rl.capacity), tokens+now.Sub(lastRefill).Seconds()*rl.rate)

	if tokens < 1 {
		wait := time.Duration((1 - tokens) / rl.rate * float64(time.Second))
		return false, wait, nil
	}

	tokens--
	if err := rl.client.HSet(ctx, rl.key, "tokens", tokens, "last_refill", now.Format(time.RFC3339Nano)).Err(); err != nil {
		return true, 0, nil
	}
	return true, 0, nil
}

func shortHash(s string) string {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return strconv.FormatUint(uint64(h), 36)
}
