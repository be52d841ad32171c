package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/fonoterapia-backend/pkg/clientip"
)

const (
	// RateLimitWindow is the length of one counting window.
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window.
	// A practice session sends one answer every few seconds, so this sits well above that.
	RateLimitMaxRequests = 120
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked
	BlockedIPDuration = 15 * time.Minute

	redisLimiterTimeout = 500 * time.Millisecond
)

// RedisRateLimit counts requests per client IP in Redis so the limit holds
// across instances. An IP over the limit is blocked for BlockedIPDuration.
// When Redis fails the request is let through.
func RedisRateLimit(client *redis.Client, trustedProxies []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.BehindProxy(r, trustedProxies)
			ctx, cancel := context.WithTimeout(r.Context(), redisLimiterTimeout)
			defer cancel()

			blockedKey := BlockedIPKeyPrefix + ip
			isBlocked, err := client.Exists(ctx, blockedKey).Result()
			if err == nil && isBlocked > 0 {
				tooManyRequests(w, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
				return
			}

			// INCR and EXPIRE NX in one round trip; the window starts at the first request.
			rateLimitKey := RateLimitKeyPrefix + ip
			var incr *redis.IntCmd
			_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				incr = pipe.Incr(ctx, rateLimitKey)
				pipe.ExpireNX(ctx, rateLimitKey, RateLimitWindow)
				return nil
			})
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			count := int(incr.Val())
			if count > RateLimitMaxRequests {
				if err := client.Set(ctx, blockedKey, "1", BlockedIPDuration).Err(); err != nil {
					slog.Warn("failed to block IP", "ip", ip, "error", err)
				} else {
					slog.Warn("IP blocked for excessive requests", "ip", ip, "count", count)
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(BlockedIPDuration.Seconds())))
				tooManyRequests(w, fmt.Sprintf("Rate limit exceeded. Try again in %d minutes.", int(BlockedIPDuration.Minutes())))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(RateLimitMaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(RateLimitMaxRequests-count))
			next.ServeHTTP(w, r)
		})
	}
}

// UnblockIP removes an IP from the blocked list.
func UnblockIP(ctx context.Context, client *redis.Client, ipAddress string) error {
	return client.Del(ctx, BlockedIPKeyPrefix+ipAddress).Err()
}
