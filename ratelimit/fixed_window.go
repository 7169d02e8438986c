// Package ratelimit implements the per-client fixed-window request gate.
//
// Each key gets Points admissions per Window. The window for a key opens on
// its first request and the counter resets when the window elapses; there is
// no sliding refill. State is memory-resident and lost on restart.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Decision is the outcome of one Admit call.
type Decision struct {
	Allowed bool

	// Remaining is the number of admissions left in the current window.
	Remaining int

	// RetryAfter is the time until the key's window resets. Always positive
	// on rejection.
	RetryAfter time.Duration

	// ResetAt is when the key's current window ends.
	ResetAt time.Time
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type bucket struct {
	count       int
	windowStart time.Time
}

// FixedWindow is a per-key fixed-window counter. It is safe for concurrent use.
type FixedWindow struct {
	points int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop      chan struct{}
	closeOnce sync.Once
}

// Option customises a FixedWindow.
type Option func(*FixedWindow)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *FixedWindow) { f.now = now }
}

// NewFixedWindow creates a gate admitting points requests per window per key.
// A background goroutine evicts expired buckets once per window; call Close
// to stop it.
func NewFixedWindow(points int, window time.Duration, opts ...Option) *FixedWindow {
	if points <= 0 {
		points = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	f := &FixedWindow{
		points:  points,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	go f.cleanupLoop()
	return f
}

// Admit consumes one point for key, or rejects with the time left until the
// key's window boundary.
func (f *FixedWindow) Admit(key string) Decision {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(f.window)) {
		b = &bucket{windowStart: now}
		f.buckets[key] = b
	}

	resetAt := b.windowStart.Add(f.window)
	if b.count >= f.points {
		return Decision{
			Allowed:    false,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}
	}

	b.count++
	return Decision{
		Allowed:   true,
		Remaining: f.points - b.count,
		ResetAt:   resetAt,
	}
}

// Limit returns the number of admissions per window.
func (f *FixedWindow) Limit() int {
	return f.points
}

// Len returns the number of tracked keys.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buckets)
}

// Sweep drops buckets whose window has elapsed.
func (f *FixedWindow) Sweep() {
	now := f.now()
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, b := range f.buckets {
		if !now.Before(b.windowStart.Add(f.window)) {
			delete(f.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (f *FixedWindow) Close() {
	f.closeOnce.Do(func() { close(f.stop) })
}

func (f *FixedWindow) cleanupLoop() {
	ticker := time.NewTicker(f.window)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.Sweep()
		}
	}
}
