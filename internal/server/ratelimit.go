// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

const (
	defaultMaxVisitors = 10000
	visitorStaleAfter  = 10 * time.Minute
	visitorSweepEvery  = 5 * time.Minute
)

// RateLimitConfig configures per-IP rate limiting of the /api routes.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps the number of tracked IPs; the least recently seen
	// are evicted first. Default: 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return balcaoerr.Errorf(balcaoerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return balcaoerr.Errorf(balcaoerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return balcaoerr.Errorf(balcaoerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
	return nil
}

type visitor struct {
	tokens     float64
	lastSeen   time.Time
	lastRefill time.Time
}

// ipLimiter is a token bucket per client IP.
type ipLimiter struct {
	cfg      RateLimitConfig
	now      func() time.Time
	mu       sync.Mutex
	visitors map[string]*visitor
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	return &ipLimiter{cfg: cfg, now: time.Now, visitors: make(map[string]*visitor)}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{tokens: float64(l.cfg.Burst), lastRefill: now}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	v.tokens += now.Sub(v.lastRefill).Seconds() * l.cfg.RequestsPerSecond
	if burst := float64(l.cfg.Burst); v.tokens > burst {
		v.tokens = burst
	}
	v.lastRefill = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// sweep drops stale visitors, then evicts the oldest until MaxVisitors holds.
func (l *ipLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorStaleAfter {
			delete(l.visitors, ip)
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: v.lastSeen})
	}

	if l.cfg.MaxVisitors <= 0 || len(entries) <= l.cfg.MaxVisitors {
		return
	}
	slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
	evict := len(entries) - l.cfg.MaxVisitors
	for _, e := range entries[:evict] {
		delete(l.visitors, e.ip)
	}
	slog.Warn("rate limiter visitor cap enforced",
		"evicted", evict, "max_visitors", l.cfg.MaxVisitors)
}

func (l *ipLimiter) sweepLoop(done <-chan struct{}) {
	ticker := time.NewTicker(visitorSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-done:
			return
		}
	}
}

// rateLimitMiddleware enforces per-IP limits on /api paths. It is a
// pass-through when cfg.RequestsPerSecond is zero. done stops the sweeper.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := newIPLimiter(cfg)
	go limiter.sweepLoop(done)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			// Limit by IP, not by connection.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !limiter.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
