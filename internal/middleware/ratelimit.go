package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a token bucket per client IP
type RateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rps      rate.Limit
	burst    int
}

// NewRateLimitMiddleware creates a limiter allowing rps requests per second
// per client with bursts of up to burst requests.
func NewRateLimitMiddleware(rps float64, burst int) *RateLimitMiddleware {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitMiddleware{
		limiters: make(map[string]*clientLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (m *RateLimitMiddleware) limiter(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	cl, ok := m.limiters[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(m.rps, m.burst)}
		m.limiters[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// RateLimit rejects requests over the client's budget with 429
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter(getClientIP(r)).Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Prune forgets clients not seen for idle and returns how many were removed.
func (m *RateLimitMiddleware) Prune(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	removed := 0
	for ip, cl := range m.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(m.limiters, ip)
			removed++
		}
	}
	return removed
}

// getClientIP returns the peer address of the connection. Forwarded headers
// are client-controlled and never pick the bucket.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
