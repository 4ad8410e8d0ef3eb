// Package ratelimit implements per-client fixed-window request limits.
package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCapacity = 10000

type bucket struct {
	start time.Time
	count int
}

// Result describes the state of a client's window after a request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Limiter allows at most limit requests per key in each window. Idle keys
// age out of a bounded LRU.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	clients *expirable.LRU[string, *bucket]
	now     func() time.Time
}

// New returns a limiter; limit <= 0 disables limiting.
func New(limit int, window time.Duration, capacity int) *Limiter {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Limiter{
		max:     limit,
		window:  window,
		clients: expirable.NewLRU[string, *bucket](capacity, nil, window),
		now:     time.Now,
	}
}

func (l *Limiter) Limit() int {
	return l.max
}

// Allow counts one request for key.
func (l *Limiter) Allow(key string) Result {
	if l.max <= 0 {
		return Result{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients.Get(key)
	if !ok || now.Sub(w.start) >= l.window {
		w = &bucket{start: now}
		l.clients.Add(key, w)
	}

	reset := w.start.Add(l.window).Sub(now)
	if w.count >= l.max {
		return Result{Allowed: false, Limit: l.max, Remaining: 0, Reset: reset}
	}
	w.count++
	return Result{Allowed: true, Limit: l.max, Remaining: l.max - w.count, Reset: reset}
}
