package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"finch/internal/auth"
	"finch/internal/config"
	"finch/internal/gateway/handlers"
)

// bucketTTL is how long an idle client's bucket is kept.
const bucketTTL = 10 * time.Minute

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket. Authenticated requests are
// keyed by user, anonymous ones by client address.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	rate    float64 // tokens per second
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a limiter and starts its janitor. Close stops it.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	rl := &RateLimiter{
		cfg:     cfg,
		rate:    float64(cfg.RequestsPerMinute) / 60,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg.Enabled {
		go rl.janitor(bucketTTL / 2)
	}
	return rl
}

// Close stops the janitor.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-bucketTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Allow takes a token from key's bucket. It returns whether the request
// may proceed, the tokens left and how long until the next token.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Duration) {
	if !rl.cfg.Enabled {
		return true, rl.cfg.Burst, 0
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.cfg.Burst), lastSeen: now}
		rl.buckets[key] = b
	}
	b.tokens = min(float64(rl.cfg.Burst), b.tokens+now.Sub(b.lastSeen).Seconds()*rl.rate)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	wait := time.Duration((1 - b.tokens) / rl.rate * float64(time.Second))
	return false, 0, wait
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, wait := rl.Allow(clientKey(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			handlers.SendError(w, http.StatusTooManyRequests, handlers.ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if u, ok := auth.FromContext(r.Context()); ok {
		return "user:" + u.ID
	}
	return "ip:" + getClientIP(r)
}
