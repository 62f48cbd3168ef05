package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client address.
type RateLimiter struct {
	perSec float64
	burst  int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// staleClientAge is how long an idle client's bucket is kept.
const staleClientAge = 10 * time.Minute

// NewRateLimiter creates a per-client limiter. perSec is the sustained rate,
// burst the bucket size.
func NewRateLimiter(perSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		perSec:   perSec,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// Allow reports whether the client identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.perSec), rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = time.Now()

	if len(rl.limiters) > 1024 {
		rl.evictStaleLocked()
	}
	return cl.limiter.Allow()
}

func (rl *RateLimiter) evictStaleLocked() {
	cutoff := time.Now().Add(-staleClientAge)
	for key, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// Middleware enforces the per-client limit, keyed by remote address.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !rl.Allow(host) {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"rate limit exceeded","code":"RATE_LIMITED"}`,
				http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds standard security headers to all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
