package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Stale entries are swept inline during allow calls rather than by a
// background goroutine, so the limiter needs no lifecycle management.
const (
	visitorSweepInterval = 5 * time.Minute
	visitorMaxIdle       = 10 * time.Minute
)

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a per-IP limiter refilling r tokens per second up
// to burst.
func newRateLimiter(r float64, burst int) *rateLimiter {
	return &rateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(r),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// allow reports whether the given IP still has a token. A first-time IP
// starts with a full bucket and spends one token immediately.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweepStale(now)

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.bucket.Allow()
}

// sweepStale drops visitors idle past visitorMaxIdle. Caller holds rl.mu.
func (rl *rateLimiter) sweepStale(now time.Time) {
	if now.Sub(rl.lastSweep) < visitorSweepInterval {
		return
	}
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorMaxIdle {
			delete(rl.visitors, ip)
		}
	}
	rl.lastSweep = now
}

// rateLimitMiddleware rejects requests from IPs that have exhausted their
// token bucket. Agent runs are expensive (model calls plus similarity
// search), so this sits in front of the chat handlers.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address rate limiting keys on.
//
// Proxy headers are only honored when the deployment declares a trusted
// reverse proxy (trust_proxy config), and anything in them must parse as an
// IP so arbitrary header strings cannot become limiter keys. X-Real-IP wins
// over X-Forwarded-For, whose first entry is the original client.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := headerIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		xff := r.Header.Get("X-Forwarded-For")
		if first, _, ok := strings.Cut(xff, ","); ok {
			xff = first
		}
		if ip := headerIP(xff); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// headerIP parses a proxy-supplied address, returning "" when it is not a
// plain IP.
func headerIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}
