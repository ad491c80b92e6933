package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// budgetReporter is implemented by limiters that can report the requests
// left in the current window.
type budgetReporter interface {
	AllowRemaining(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
}

// RateLimit returns middleware that limits each client IP to limit requests
// per window using the shared limiter, so every replica enforces one budget.
// Limiter errors fail open. Limiters that report their remaining budget get
// it echoed in X-RateLimit-Remaining.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := extractClientIP(r)
			key := "api:" + clientIP

			var (
				allowed bool
				err     error
			)
			if br, ok := limiter.(budgetReporter); ok {
				var left int
				allowed, left, err = br.AllowRemaining(r.Context(), key, limit, window)
				if err == nil {
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
					w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(left))
				}
			} else {
				allowed, err = limiter.Allow(r.Context(), key, limit, window)
			}
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("client", clientIP),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(window)))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP attempts to determine the real client IP from standard
// proxy headers, falling back to the direct remote address.
func extractClientIP(r *http.Request) string {
	// Check X-Forwarded-For first (may contain multiple IPs).
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	// Check X-Real-IP.
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(window time.Duration) int {
	if s := int(window / time.Second); s > 1 {
		return s
	}
	return 1
}
