package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tlxue/everclaw/internal/app"
	"github.com/tlxue/everclaw/internal/service"
	"golang.org/x/time/rate"
)

// IPLimiter keeps one token bucket per client key. Idle buckets are removed
// by [IPLimiter.EvictIdle], which a background worker calls periodically.
type IPLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry

	now func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPLimiter(limit rate.Limit, burst int) *IPLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPLimiter{
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now.
func (l *IPLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now

	return e.limiter.AllowN(now, 1)
}

// EvictIdle drops buckets unused for longer than ttl and returns how many
// were removed.
func (l *IPLimiter) EvictIdle(ttl time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) > ttl {
			delete(l.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked clients.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// withRateLimit throttles vault routes per client IP. It is a no-op when
// rate limiting is disabled.
func (h *Handler) withRateLimit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow(clientIP(r)) {
			writeError(w, r, &service.VaultError{
				Kind:    service.KindRateLimited,
				Message: app.MsgTooManyRequests,
				Hint:    "Reduce request rate and retry",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitProvisioning counts the request against the provisioning window of
// the client before the provision handler runs.
func (h *Handler) limitProvisioning(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.services.ProvisionLimiter.Allow(r.Context(), clientIP(r)); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP identifies the caller by CF-Connecting-IP, then the first
// X-Forwarded-For entry, then the connection's remote address.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
