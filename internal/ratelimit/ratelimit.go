package ratelimit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// Limiter is the injected rate-limiting port. Implementations are
// best-effort availability safeguards, not correctness mechanisms.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type window struct {
	count int
	start time.Time
}

// FixedWindow counts requests per key in fixed time windows, in process
// memory. State resets on restart and is per-instance; a multi-instance
// deployment that needs shared accuracy should use the Redis limiter.
type FixedWindow struct {
	mu      sync.Mutex
	limit   int
	span    time.Duration
	buckets map[string]*window

	now func() time.Time
}

func NewFixedWindow(limit int, span time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:   limit,
		span:    span,
		buckets: make(map[string]*window),
		now:     time.Now,
	}
}

func (f *FixedWindow) Allow(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	b, ok := f.buckets[key]
	if !ok || now.Sub(b.start) > f.span {
		f.buckets[key] = &window{count: 1, start: now}
		return true, nil
	}
	if b.count >= f.limit {
		return false, nil
	}
	b.count++
	return true, nil
}

// Middleware rejects over-limit requests with 429, keyed by client IP.
// Limiter errors fail open: degraded limiting beats a dead endpoint.
func Middleware(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), clientIP(r))
			if err == nil && !ok {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from the forwarding
	// headers before this runs.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
