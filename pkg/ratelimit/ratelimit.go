// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package ratelimit

import (
	"cmp"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrAttemptsExhausted is returned by Attempts.Next once every attempt is used.
var ErrAttemptsExhausted = errors.New("ratelimit: attempts exhausted")

// Limiter applies one token bucket per client and forgets clients that
// have been idle for MaxIdle.
type Limiter struct {
	rate    rate.Limit
	burst   int
	enabled bool
	maxIdle time.Duration

	mu      sync.Mutex
	clients map[string]*client

	sweepEvery time.Duration
	done       chan struct{}
	stopOnce   sync.Once
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration.
type Config struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute sets the sustained rate limit.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to RequestsPerMinute.
	Burst int `yaml:"burst"`

	// CleanupInterval controls how often to remove idle clients.
	// Defaults to 10 minutes.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// MaxIdle is how long a client can be idle before cleanup.
	// Defaults to 30 minutes.
	MaxIdle time.Duration `yaml:"max_idle"`
}

// New creates a limiter. A nil config yields a disabled limiter.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{}
	}

	l := &Limiter{
		rate:       rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:      cmp.Or(config.Burst, config.RequestsPerMinute),
		enabled:    config.Enabled,
		maxIdle:    cmp.Or(config.MaxIdle, 30*time.Minute),
		clients:    make(map[string]*client),
		sweepEvery: cmp.Or(config.CleanupInterval, 10*time.Minute),
		done:       make(chan struct{}),
	}
	if l.enabled {
		go l.sweepLoop()
	}
	return l
}

// bucket returns the token bucket of clientID, creating it on first use.
func (l *Limiter) bucket(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[clientID]
	if !ok {
		c = &client{bucket: rate.NewLimiter(l.rate, l.burst)}
		l.clients[clientID] = c
	}
	c.lastSeen = time.Now()
	return c.bucket
}

// Allow reports whether a request from clientID is within the limit.
func (l *Limiter) Allow(clientID string) bool {
	return !l.enabled || l.bucket(clientID).Allow()
}

// Wait blocks until clientID may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, clientID string) error {
	if !l.enabled {
		return nil
	}
	return l.bucket(clientID).Wait(ctx)
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			l.sweep(now)
		case <-l.done:
			return
		}
	}
}

// sweep drops clients idle for longer than maxIdle.
func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, c := range l.clients {
		if now.Sub(c.lastSeen) > l.maxIdle {
			delete(l.clients, id)
		}
	}
}

// Stop ends the idle sweep. It may be called more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Stats reports the configuration and the number of tracked clients.
func (l *Limiter) Stats() map[string]any {
	l.mu.Lock()
	active := len(l.clients)
	l.mu.Unlock()

	return map[string]any{
		"enabled":        l.enabled,
		"active_clients": active,
		"rate_per_min":   float64(l.rate) * 60,
		"burst":          l.burst,
	}
}

// IsEnabled returns whether rate limiting is enabled.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}

// activeClients returns the number of tracked clients.
func (l *Limiter) activeClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware returns an HTTP middleware that rejects clients over the limit
// with 429. Clients are identified by IP address.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP, preferring the first X-Forwarded-For
// entry and then X-Real-IP for proxied requests.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Attempts bounds a retry loop, such as an interactive password prompt, to a
// fixed number of tries spaced at least delay apart.
type Attempts struct {
	limiter *rate.Limiter
	total   int
	used    int
}

// NewAttempts allows n tries. The first try is immediate.
func NewAttempts(n int, delay time.Duration) *Attempts {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Attempts{
		limiter: rate.NewLimiter(limit, 1),
		total:   n,
	}
}

// Next waits for the next try. It returns ErrAttemptsExhausted after n
// tries and ctx.Err() if ctx is done first.
func (a *Attempts) Next(ctx context.Context) error {
	if a.used >= a.total {
		return ErrAttemptsExhausted
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	a.used++
	return nil
}

// Used returns the number of tries taken.
func (a *Attempts) Used() int { return a.used }

// Remaining returns the number of tries left.
func (a *Attempts) Remaining() int { return max(a.total-a.used, 0) }
