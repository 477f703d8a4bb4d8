package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Chain-Proof/chainproofserver/internal/api/render"
	"github.com/Chain-Proof/chainproofserver/internal/logger"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/services"

	"github.com/sirupsen/logrus"
)

type RateLimiter struct {
	cache services.CacheService
}

func NewRateLimiter(cache services.CacheService) *RateLimiter {
	return &RateLimiter{cache: cache}
}

type limitWindow struct {
	name      string
	limit     int
	window    time.Duration
	reset     time.Time
	remaining int64
}

func (w limitWindow) setHeaders(h http.Header) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(w.limit))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(w.remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(w.reset.Unix(), 10))
}

// RateLimit enforces the per-key minute and day budgets carried on the key
// itself. Runs after APIKeyMiddleware. If the counter store is down the
// request is let through rather than failed.
func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, ok := services.APIKeyFromContext(r.Context())
		if !ok {
			render.Error(w, apierrors.Auth("API key is required."))
			return
		}

		now := time.Now()
		windows := []limitWindow{
			{name: "minute", limit: apiKey.RateLimit.RequestsPerMinute, window: time.Minute},
			{name: "day", limit: apiKey.RateLimit.RequestsPerDay, window: 24 * time.Hour},
		}

		// tightest tracks the window with the fewest requests left; its
		// numbers go into the response headers.
		var tightest *limitWindow

		for i := range windows {
			win := &windows[i]
			if win.limit <= 0 {
				continue
			}
			win.reset = now.Truncate(win.window).Add(win.window)

			counterKey := fmt.Sprintf("ratelimit:%s:%s:%d", apiKey.ID, win.name, now.Truncate(win.window).Unix())
			count, err := rl.cache.Increment(r.Context(), counterKey, win.window)
			if err != nil {
				logger.Logger.WithFields(logrus.Fields{
					"error":  err,
					"key_id": apiKey.ID,
					"window": win.name,
				}).Warn("Rate limit counter unavailable, letting request through")
				continue
			}

			win.remaining = int64(win.limit) - count
			if win.remaining < 0 {
				win.remaining = 0
			}

			if count > int64(win.limit) {
				win.setHeaders(w.Header())
				retryAfter := int(time.Until(win.reset).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				render.JSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"success": false,
					"error":   fmt.Sprintf("Rate limit exceeded: %d requests per %s.", win.limit, win.name),
				})
				return
			}

			if tightest == nil || win.remaining < tightest.remaining {
				tightest = win
			}
		}

		if tightest != nil {
			tightest.setHeaders(w.Header())
		}

		next.ServeHTTP(w, r)
	})
}
