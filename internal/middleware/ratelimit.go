package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const defaultMaxTracked = 100_000

// Limiter is per-client token bucket rate limiting for the HTTP surface.
// Buckets are keyed by the transport peer's IP; proxy headers never select
// the bucket because a spoofable key defeats the limit.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rate       float64 // sustained tokens per second
	burst      float64 // bucket capacity
	maxTracked int     // hard cap on distinct client buckets
}

type bucket struct {
	tokens   float64
	refilled time.Time
	seen     time.Time
}

// NewLimiter creates a limiter allowing rate requests per second with the
// given burst. maxTracked caps how many client buckets are held in memory;
// zero or negative applies the default.
func NewLimiter(rate float64, burst, maxTracked int) *Limiter {
	if maxTracked <= 0 {
		maxTracked = defaultMaxTracked
	}
	return &Limiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		burst:      float64(burst),
		maxTracked: maxTracked,
	}
}

// Handler enforces the limit. Every response carries the limit headers;
// rejected requests get a 429 with Retry-After.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, retryAfter, allowed := l.take(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(l.burst)))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take consumes one token for the client, refilling by elapsed time first.
func (l *Limiter) take(client string) (remaining int, retryAfter float64, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[client]
	if !ok {
		// New clients are rejected outright once the bucket table is full.
		if len(l.buckets) >= l.maxTracked {
			return 0, 1 / l.rate, false
		}
		b = &bucket{tokens: l.burst - 1, refilled: now, seen: now}
		l.buckets[client] = b
		return int(b.tokens), 0, true
	}

	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.refilled).Seconds()*l.rate)
	b.refilled = now
	b.seen = now

	if b.tokens < 1 {
		return 0, (1 - b.tokens) / l.rate, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// StartCleanup evicts buckets idle longer than maxIdle on every interval
// tick. The returned cancel stops the sweeper.
func (l *Limiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep(maxIdle)
			}
		}
	}()
	return cancel
}

func (l *Limiter) sweep(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for client, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, client)
		}
	}
}

// Len reports the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// clientIP keys the bucket on RemoteAddr. X-Forwarded-For and X-Real-Ip
// are attacker-controlled and must not pick the bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
