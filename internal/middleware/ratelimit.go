package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle client keeps its token bucket.
const staleAfter = 10 * time.Minute

// limiterPool hands out one token bucket per client IP and evicts
// buckets nobody has used for a while.
type limiterPool struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (p *limiterPool) get(ip string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if b, ok := p.clients[ip]; ok {
		b.lastSeen = now
		return b.limiter
	}

	for ip, b := range p.clients {
		if now.Sub(b.lastSeen) > staleAfter {
			delete(p.clients, ip)
		}
	}

	b := &clientBucket{limiter: rate.NewLimiter(p.rps, p.burst), lastSeen: now}
	p.clients[ip] = b
	return b.limiter
}

// RateLimit enforces a per-client token-bucket limit, keyed by the
// connection's remote address. Forwarding headers are deliberately
// ignored: trusting them would let any caller reset its own bucket.
func RateLimit(requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	pool := &limiterPool{
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
		clients: make(map[string]*clientBucket),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := pool.get(clientIP(r))

			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
