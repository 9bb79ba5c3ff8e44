package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ieraasyl/ChatGateway/pkg/utils"
	"github.com/rs/zerolog/log"
)

// RateCounter increments a fixed-window counter and returns the new count.
// Implemented by *database.RedisDB.
type RateCounter interface {
	IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error)
}

// RateLimiter limits requests per client IP and endpoint with Redis-backed
// fixed windows, so the limit holds across gateway instances. It guards the
// login routes against password guessing.
//
// Redis key pattern: "ratelimit:{ip}:{endpoint}" with TTL equal to window
type RateLimiter struct {
	counter        RateCounter
	requestsPerMin int
	window         time.Duration
}

// NewRateLimiter creates a limiter allowing requestsPerMin requests per
// window.
//
// Example:
//
//	limiter := middleware.NewRateLimiter(redisDB, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration)
//	r.With(limiter.Limit("auth")).Post("/login", authHandler.Login)
func NewRateLimiter(counter RateCounter, requestsPerMin int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter:        counter,
		requestsPerMin: requestsPerMin,
		window:         window,
	}
}

// Limit returns middleware counting requests under endpoint. Over the
// limit it answers 429 with Retry-After; otherwise it sets
// X-RateLimit-Limit and X-RateLimit-Remaining.
//
// Redis errors let the request through.
func (rl *RateLimiter) Limit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ExtractClientIP(r)

			count, err := rl.counter.IncrementRateLimit(r.Context(), ip, endpoint, rl.window)
			if err != nil {
				log.Error().Err(err).Str("ip", ip).Msg("Failed to check rate limit")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requestsPerMin))

			if count > int64(rl.requestsPerMin) {
				log.Warn().
					Str("ip", ip).
					Str("endpoint", endpoint).
					Int64("count", count).
					Msg("Rate limit exceeded")

				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
				utils.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", rl.requestsPerMin-int(count)))
			next.ServeHTTP(w, r)
		})
	}
}
