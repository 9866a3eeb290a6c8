// Package middleware holds the HTTP middleware shared by all routes.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP. This is transport-level
// protection only; feature quotas are enforced separately by the usage
// accountant.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	seen     map[string]time.Time

	requestsPerSecond rate.Limit
	burst             int
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters:          make(map[string]*rate.Limiter),
		seen:              make(map[string]time.Time),
		requestsPerSecond: rate.Limit(requestsPerSecond),
		burst:             burst,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the bucket key. RemoteAddr carries a per-connection port on
// direct connections; the RealIP middleware has already rewritten it to the
// bare forwarded address when a trusted proxy is in front.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.requestsPerSecond, rl.burst)
		rl.limiters[ip] = limiter
	}
	rl.seen[ip] = time.Now()
	return limiter
}

func (rl *RateLimiter) cleanup() {
	for range time.Tick(10 * time.Minute) {
		rl.mu.Lock()
		for ip, last := range rl.seen {
			if time.Since(last) > 30*time.Minute {
				delete(rl.limiters, ip)
				delete(rl.seen, ip)
			}
		}
		rl.mu.Unlock()
	}
}
