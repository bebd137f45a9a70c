package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/shedview/shedview-api/internal/http/api"
)

// RateLimitConfig holds the per-minute bucket sizes.
type RateLimitConfig struct {
	// PublicPerMinute is the public bucket per club.
	PublicPerMinute int
	// AdminPerMinute is the admin bucket per club.
	AdminPerMinute int
	// LoginPerIPPerMinute brakes login brute force per client IP.
	LoginPerIPPerMinute int
}

// DefaultRateLimitConfig returns the stock limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PublicPerMinute:     120,
		AdminPerMinute:      60,
		LoginPerIPPerMinute: 5,
	}
}

// RateLimitByClub limits requests per resolved club in a named lane
// ("public" or "admin"), refilled per minute. Requests with no resolved
// club fall back to the client IP so the bucket still applies.
func RateLimitByClub(lane string, requestsPerMinute int) func(http.Handler) http.Handler {
	limiter := httprate.NewRateLimiter(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if club := GetClub(r.Context()); club != nil {
				return lane + ":" + club.ID, nil
			}
			ip, err := httprate.KeyByIP(r)
			return lane + ":" + ip, err
		}),
		httprate.WithLimitHandler(rateLimited),
	)
	return limiter.Handler
}

// RateLimitLoginByIP brakes brute-force attempts on the login endpoint.
func RateLimitLoginByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	limiter := httprate.NewRateLimiter(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
	return limiter.Handler
}

// rateLimited emits the canonical envelope. Buckets refill per minute,
// so a missing Retry-After defaults to the window size.
func rateLimited(w http.ResponseWriter, r *http.Request) {
	if w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", "60")
	}
	api.WriteError(w, r, http.StatusTooManyRequests, api.CodeRateLimited, "rate limit exceeded, retry later", nil)
}
