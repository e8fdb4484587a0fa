package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether another call of an operation class fits its budget.
// A true result consumes one slot of the budget.
type Limiter interface {
	CheckLimit(ctx context.Context, operation string, maxCalls int, window time.Duration) (bool, error)
}

// MemoryLimiter is a sliding-window limiter.
type MemoryLimiter struct {
	// now returns the current time.
	now func() time.Time

	mu    sync.Mutex
	calls map[string][]time.Time
}

// Option configures a MemoryLimiter.
type Option func(*MemoryLimiter)

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewMemoryLimiter creates an empty limiter.
func NewMemoryLimiter(opts ...Option) *MemoryLimiter {
	l := &MemoryLimiter{
		now:   time.Now,
		calls: make(map[string][]time.Time),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// CheckLimit records the call when it fits inside the window.
func (l *MemoryLimiter) CheckLimit(_ context.Context, operation string, maxCalls int, window time.Duration) (bool, error) {
	if maxCalls <= 0 || window <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	recent := l.calls[operation][:0]
	for _, at := range l.calls[operation] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= maxCalls {
		l.calls[operation] = recent

		return false, nil
	}

	l.calls[operation] = append(recent, now)

	return true, nil
}

// Reset forgets every recorded call of the operation class.
func (l *MemoryLimiter) Reset(operation string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.calls, operation)
}
