package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/errors"
	"visitor-counter/pkg/logger"
)

// RequestLimiter is the slice of the rate limiter the middleware needs
type RequestLimiter interface {
	Allow(ctx context.Context, identity string) (*domain.RateLimitInfo, error)
}

// IdentityFunc derives a source identity from a raw client address
type IdentityFunc func(sourceAddress string, at time.Time) string

// RateLimit throttles requests per source identity, rejecting with 429 once
// the window ceiling is hit. Store failures let the request through: public
// reads fail open.
func RateLimit(limiter RequestLimiter, identity IdentityFunc, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := limiter.Allow(r.Context(), identity(clientAddress(r), time.Now()))
			if err != nil {
				logger.WithError(err).Warn("Rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, info)

			if !info.IsAllowed {
				writeErrorResponse(w, errors.NewRateLimitError("Rate limit exceeded. Please try again later."), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddress strips the port from RemoteAddr, which the RealIP middleware
// has already rewritten from any proxy headers
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// setRateLimitHeaders sets standard rate limit headers
func setRateLimitHeaders(w http.ResponseWriter, info *domain.RateLimitInfo) {
	remaining := info.Limit - info.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(info.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.WindowStart.Add(info.TTL).Unix(), 10))
}
