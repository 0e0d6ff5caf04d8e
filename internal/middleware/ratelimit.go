package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-reservation-engine/internal/config"
)

// limiterScript takes one token from the bucket at KEYS[1].  Tokens come
// back in whole intervals; a partial interval is carried in ts so it is
// not lost between calls.  A refused call leaves the bucket untouched.
// ARGV: capacity, refill tokens, interval ms, ttl ms, now ms.
// Returns {allowed, remaining, retry_after_ms}.
var limiterScript = redis.NewScript(`
	local cap, per, every = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])
	local ttl, now = tonumber(ARGV[4]), tonumber(ARGV[5])

	local b = redis.call('HMGET', KEYS[1], 't', 'ts')
	local t, ts = tonumber(b[1]) or cap, tonumber(b[2]) or now
	if every > 0 and per > 0 and now > ts then
		local n = math.floor((now - ts) / every)
		t = math.min(cap, t + n * per)
		ts = ts + n * every
	end

	if t < 1 then
		return { 0, 0, math.max(0, ts + every - now) }
	end
	t = t - 1
	redis.call('HSET', KEYS[1], 't', t, 'ts', ts)
	redis.call('PEXPIRE', KEYS[1], ttl)
	return { 1, t, 0 }
`)

// NewTokenBucket limits requests per key with a Redis token bucket.  A
// Redis failure lets the request through: the limiter protects capacity,
// it does not guard correctness.
func NewTokenBucket(cfg config.RateLimitConfig, rdb redis.UniversalClient) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			args := []interface{}{
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				cfg.TTL.Milliseconds(),
				time.Now().UnixMilli(),
			}

			vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
			if err != nil {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
				}
				return next(c)
			}
			arr, ok := vals.([]interface{})
			if !ok || len(arr) != 3 {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] unexpected script result for key=%s: %#v", key, vals)
				}
				return next(c)
			}
			allowed := fmt.Sprint(arr[0]) == "1"
			remaining := asInt64(arr[1])
			retryMs := asInt64(arr[2])

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					c.Logger().Infof("[ratelimit] block key=%s remaining=%d retry=%dms", key, remaining, retryMs)
				}
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}

			if cfg.Debug {
				c.Response().Header().Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	actor := actorID(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "actor":
		parts = append(parts, "actor", actor)
	case "actor_route":
		parts = append(parts, "actor", actor, "route", route)
	default: // "ip_actor_route"
		parts = append(parts, "ip", ip, "actor", actor, "route", route)
	}
	return strings.Join(parts, ":")
}
