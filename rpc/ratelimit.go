package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per caller. Idle buckets are dropped
// while new ones are created.
type rateLimiter struct {
	perSecond rate.Limit
	burst     int
	now       func() time.Time

	mu       sync.Mutex
	visitors map[string]*limiterEntry
}

func newRateLimiter(perSecond float64, burst int, now func() time.Time) *rateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		now:       now,
		visitors:  make(map[string]*limiterEntry),
	}
}

// allow reports whether id may issue another request. A nil limiter allows
// everything.
func (r *rateLimiter) allow(id string) bool {
	if r == nil {
		return true
	}
	if id == "" {
		id = "unknown"
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.visitors[id]
	if !ok {
		for key, e := range r.visitors {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(r.visitors, key)
			}
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(r.perSecond, r.burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		candidate, _, _ := strings.Cut(forwarded, ",")
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
