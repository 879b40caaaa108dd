package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/config"
)

// takeToken refills the bucket in KEYS[1] for the whole intervals that
// elapsed since the last refill, then tries to take one token.
//
//	ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_s
//	returns {allowed (0|1), tokens_left, retry_after_ms}
var takeToken = redis.NewScript(`
local now, cap, step, every, ttl =
	tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local h = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens, at = tonumber(h[1]), tonumber(h[2])
if tokens == nil or at == nil then
	tokens, at = cap, now
end
if every > 0 and step > 0 and now > at then
	local n = math.floor((now - at) / every)
	if n > 0 then
		tokens = math.min(cap, tokens + n * step)
		at = at + n * every
	end
end
local retry = 0
local ok = 0
if tokens > 0 then
	ok, tokens = 1, tokens - 1
else
	retry = math.max(0, every - (now - at))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, retry}
`)

// verdict is the decoded script reply.
type verdict struct {
	allowed   bool
	remaining int64
	retryMs   int64
}

// parseVerdict decodes the three-element script reply.  ok is false for
// any other shape.
func parseVerdict(v interface{}) (verdict, bool) {
	arr, isArr := v.([]interface{})
	if !isArr || len(arr) != 3 {
		return verdict{}, false
	}
	return verdict{
		allowed:   asInt64(arr[0]) == 1,
		remaining: asInt64(arr[1]),
		retryMs:   asInt64(arr[2]),
	}, true
}

// retryAfter rounds a wait in milliseconds up to whole seconds.
func retryAfter(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int(math.Ceil(float64(ms) / 1000))
}

// NewTokenBucket limits requests per key with a Redis token bucket.  It
// passes everything through when disabled or without a Redis client, and
// fails open on Redis errors.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger logrus.FieldLogger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	limit := strconv.Itoa(cfg.Capacity)
	ttl := int64(cfg.TTL / time.Second)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			reply, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens, cfg.RefillInterval.Milliseconds(), ttl,
			).Result()
			if err != nil {
				if cfg.Debug {
					logger.WithField("key", key).WithError(err).Warn("rate limit: redis error")
				}
				return next(c)
			}
			v, ok := parseVerdict(reply)
			if !ok {
				logger.WithField("key", key).Warnf("rate limit: unexpected reply %#v", reply)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if !v.allowed {
				secs := retryAfter(v.retryMs)
				h.Set("Retry-After", strconv.Itoa(secs))
				logger.WithFields(logrus.Fields{"key": key, "retry_after": secs}).Info("rate limited")
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

// buildRateKey composes the bucket key from the parts the strategy
// names: any "_"-joined subset of ip, user and route, in that order.
// Unknown strategies use all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	want := map[string]bool{}
	for _, p := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		want[p] = true
	}
	if !want["ip"] && !want["user"] && !want["route"] {
		want = map[string]bool{"ip": true, "user": true, "route": true}
	}

	parts := []string{cfg.Prefix}
	if want["ip"] {
		ip := c.RealIP()
		if ip == "" {
			ip = "unknown"
		}
		parts = append(parts, "ip", ip)
	}
	if want["user"] {
		parts = append(parts, "user", userKey(c))
	}
	if want["route"] {
		parts = append(parts, "route", c.Request().Method+" "+c.Path())
	}
	return strings.Join(parts, ":")
}
