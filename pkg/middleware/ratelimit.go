package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/ratelimit"
)

// RateLimit rejects clients that exceed limiter's budget with 429. Clients
// are keyed by the first X-Forwarded-For address, else the remote host.
// Health and metrics endpoints are never limited.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			key := clientKey(r)
			if !limiter.Allow(key) {
				secs := int(limiter.RetryAfter(key).Seconds()) + 1
				logger.FromContext(r.Context()).Warn("rate limit exceeded", "client", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
