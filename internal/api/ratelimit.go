package api

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/stardrift/server/internal/auth"
)

// Rate limit tiers for this server's route groups. Auth endpoints are
// strict per IP to slow credential stuffing; world queries allow a client
// reporting its position several times a second; admin operations are rare
// and tight.
const (
	authRequestsPerMinute  = 5
	worldRequestsPerMinute = 600
	adminRequestsPerMinute = 10
)

// AuthRateLimit limits register/login/refresh attempts by client IP.
func AuthRateLimit() func(http.Handler) http.Handler {
	return RateLimitMiddleware(authRequestsPerMinute, time.Minute)
}

// WorldRateLimit limits world queries per authenticated player.
func WorldRateLimit() func(http.Handler) http.Handler {
	return UserRateLimitMiddleware(worldRequestsPerMinute, time.Minute)
}

// AdminRateLimit limits admin operations per authenticated user.
func AdminRateLimit() func(http.Handler) http.Handler {
	return UserRateLimitMiddleware(adminRequestsPerMinute, time.Minute)
}

const rateLimitExceededJSON = `{"error":"Rate limit exceeded","message":"Too many requests. Please try again later.","retry_after":%d}`

// RateLimitMiddleware limits requests by client IP with its own in-memory
// counter store.
func RateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	instance := newLimiter(limit, window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enforceLimit(w, r, instance, clientIP(r)) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// UserRateLimitMiddleware limits requests per authenticated player,
// falling back to the client IP when the request carries no identity.
func UserRateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	instance := newLimiter(limit, window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if userID, ok := auth.GetUserID(r); ok {
				key = fmt.Sprintf("user:%d", userID)
			}
			if enforceLimit(w, r, instance, key) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func newLimiter(limit int, window time.Duration) *limiter.Limiter {
	return limiter.New(memory.NewStore(), limiter.Rate{
		Period: window,
		Limit:  int64(limit),
	})
}

// enforceLimit records the request against key, sets the X-RateLimit
// headers, and reports whether the request may proceed. A failing limiter
// store lets the request through; rate limiting must not take the API down.
func enforceLimit(w http.ResponseWriter, r *http.Request, instance *limiter.Limiter, key string) bool {
	lctx, err := instance.Get(r.Context(), key)
	if err != nil {
		log.Printf("[RateLimit] limiter error for %s: %v", key, err)
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

	if !lctx.Reached {
		return true
	}

	retryAfter := int(time.Until(time.Unix(lctx.Reset, 0)).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	if _, err := fmt.Fprintf(w, rateLimitExceededJSON, retryAfter); err != nil {
		log.Printf("[RateLimit] error writing response: %v", err)
	}
	return false
}

// clientIP resolves the client address, trusting proxy headers when
// present. Only the first X-Forwarded-For hop counts; later entries are
// appended by intermediaries.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
