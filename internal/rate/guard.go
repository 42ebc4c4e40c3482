// Package rate enforces a client-side request budget toward the vendor
// gateway so a misbehaving poll loop cannot trip the vendor's server-side
// limits.
package rate

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// LimitError is returned when a call is blocked locally. It satisfies the
// gateway client's rate-limit classification without a package dependency.
type LimitError struct {
	RetryAt time.Time
}

func (e LimitError) Error() string {
	if e.RetryAt.IsZero() {
		return "gateway request budget exhausted"
	}
	return fmt.Sprintf("gateway request budget exhausted (retry at %s)", e.RetryAt.UTC().Format(time.RFC3339))
}

// RateLimited marks the error as a local rate-limit block.
func (e LimitError) RateLimited() bool { return true }

// Guard is a token-bucket request gate with a cooldown honoring the
// vendor's Retry-After responses.
type Guard struct {
	mu       sync.Mutex
	capacity int
	tokens   float64
	last     time.Time
	cooldown time.Time
	now      func() time.Time
}

// NewGuard builds a guard allowing perMinute requests. perMinute <= 0
// disables the bucket (cooldowns still apply).
func NewGuard(perMinute int) *Guard {
	return &Guard{
		capacity: perMinute,
		tokens:   float64(perMinute),
		now:      time.Now,
	}
}

// WrapHTTP wraps an http.Client so every request passes the guard.
func WrapHTTP(perMinute int, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &roundTripper{base: transport, guard: NewGuard(perMinute)}
	return &client
}

type roundTripper struct {
	base  http.RoundTripper
	guard *Guard
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.guard.Allow(); err != nil {
		blockedTotal.Inc()
		return nil, err
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	rt.guard.RecordResponse(resp.StatusCode, resp.Header)
	return resp, nil
}

// Allow consumes one token, or returns a LimitError telling the caller
// when to come back.
func (g *Guard) Allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.cooldown.IsZero() {
		if now.Before(g.cooldown) {
			return LimitError{RetryAt: g.cooldown}
		}
		g.cooldown = time.Time{}
	}

	if g.capacity <= 0 {
		return nil
	}

	if g.last.IsZero() {
		g.last = now
	}
	refill := now.Sub(g.last).Seconds() * float64(g.capacity) / 60
	g.tokens = minFloat(float64(g.capacity), g.tokens+refill)
	g.last = now

	if g.tokens < 1 {
		retryAt := now.Add(time.Duration(60/float64(g.capacity)*float64(time.Second)) + time.Second)
		return LimitError{RetryAt: retryAt}
	}
	g.tokens--
	tokensGauge.Set(g.tokens)
	return nil
}

// RecordResponse observes the vendor's answer and opens a cooldown when
// it says to back off.
func (g *Guard) RecordResponse(status int, headers http.Header) {
	lastStatusGauge.Set(float64(status))
	if status != http.StatusTooManyRequests {
		return
	}
	seconds := headerInt(headers, "Retry-After")
	if seconds <= 0 {
		seconds = 60
	}
	g.mu.Lock()
	g.cooldown = g.now().Add(time.Duration(seconds) * time.Second)
	g.mu.Unlock()
	cooldownTotal.Inc()
}

func headerInt(h http.Header, key string) int {
	value := h.Get(key)
	if value == "" {
		return -1
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
