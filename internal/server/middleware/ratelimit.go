package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// perIPMaxAge is how long an idle client keeps its limiter.
	perIPMaxAge = 10 * time.Minute
	// perIPMaxClients caps the number of tracked clients.
	perIPMaxClients   = 10000
	perIPCleanupEvery = time.Minute
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	Enabled           bool
}

// RateLimit creates a middleware with one token bucket shared by every
// client.
func RateLimit(config *RateLimitConfig) Middleware {
	if !config.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				tooManyRequests(w, config.RequestsPerSecond)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PerIPRateLimitConfig holds per-IP rate limiting configuration.
type PerIPRateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	Enabled           bool
}

type ipLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// perIPLimiter keeps a limiter per client and forgets idle clients.
type perIPLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiterEntry
	rps      rate.Limit
	burst    int
	done     chan struct{}
}

func newPerIPLimiter(rps float64, burst int) *perIPLimiter {
	l := &perIPLimiter{
		limiters: make(map[string]*ipLimiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		done:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *perIPLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.limiters[ip]
	if !exists {
		if len(l.limiters) >= perIPMaxClients {
			l.evictOldest()
		}
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

func (l *perIPLimiter) cleanupLoop() {
	ticker := time.NewTicker(perIPCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup drops limiters idle for longer than perIPMaxAge.
func (l *perIPLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-perIPMaxAge)
	for ip, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// evictOldest drops the least recently used limiter. Callers hold mu.
func (l *perIPLimiter) evictOldest() {
	var oldestIP string
	var oldest time.Time
	for ip, entry := range l.limiters {
		if oldestIP == "" || entry.lastAccess.Before(oldest) {
			oldestIP = ip
			oldest = entry.lastAccess
		}
	}
	if oldestIP != "" {
		delete(l.limiters, oldestIP)
	}
}

// PerIPRateLimit creates a middleware that limits request rate per client IP.
func PerIPRateLimit(config *PerIPRateLimitConfig) Middleware {
	if !config.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	ipLimiter := newPerIPLimiter(config.RequestsPerSecond, config.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ipLimiter.getLimiter(getClientIP(r)).Allow() {
				tooManyRequests(w, config.RequestsPerSecond)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// RemoteAddr as given.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func tooManyRequests(w http.ResponseWriter, rps float64) {
	if rps > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(1/rps))))
	}
	writeError(w, http.StatusTooManyRequests, "too many requests")
}
