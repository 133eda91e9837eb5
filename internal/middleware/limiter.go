package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"storefront/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Writes: login / OTP / checkout (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// Reads (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	defaultIdleTTL = 3 * time.Minute
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type tier struct {
	name  string
	limit rate.Limit
	burst int
}

// RateLimiter keeps one token bucket per client and tier.
type RateLimiter struct {
	strict  tier
	general tier
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

type LimiterOption func(*RateLimiter)

// WithGeneralRate overrides the read tier.
func WithGeneralRate(limit rate.Limit, burst int) LimiterOption {
	return func(l *RateLimiter) { l.general = tier{"general", limit, burst} }
}

// WithStrictRate overrides the write tier.
func WithStrictRate(limit rate.Limit, burst int) LimiterOption {
	return func(l *RateLimiter) { l.strict = tier{"strict", limit, burst} }
}

func WithIdleTTL(d time.Duration) LimiterOption {
	return func(l *RateLimiter) { l.idleTTL = d }
}

func NewRateLimiter(opts ...LimiterOption) *RateLimiter {
	l := &RateLimiter{
		strict:   tier{"strict", limitStrict, burstStrict},
		general:  tier{"general", limitGeneral, burstGeneral},
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// getVisitor retrieves or creates a rate limiter for the given key.
func (l *RateLimiter) getVisitor(key string, t tier) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(t.limit, t.burst)
		l.visitors[key] = &visitor{limiter, l.now()}
		return limiter
	}

	v.lastSeen = l.now()
	return v.limiter
}

// Cleanup drops visitors idle for longer than the TTL and returns how many
// were removed.
func (l *RateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (l *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				logger.L().Debug("rate limiter visitors expired", zap.Int("count", n))
			}
		}
	}
}

// Middleware rejects requests over the client's quota with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := l.general
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			t = l.strict
		}

		var identity string
		if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
			identity = "device:" + deviceID
		} else {
			identity = "ip:" + clientIP(r)
		}

		// separate quotas for reads and writes
		key := fmt.Sprintf("%s:%s", identity, t.name)

		if !l.getVisitor(key, t).Allow() {
			logger.FromCtx(r.Context()).Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
