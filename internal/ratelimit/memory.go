package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired windows are dropped
const DefaultSweepInterval = 5 * time.Minute

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in a process-wide map. Each replica has
// its own view, so limits are per process, not global.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	logger  *slog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// MemoryOption customises a MemoryLimiter
type MemoryOption func(*MemoryLimiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// NewMemoryLimiter creates the limiter and starts the sweeper. Call Stop
// to end it.
func NewMemoryLimiter(logger *slog.Logger, sweepInterval time.Duration, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		windows:  make(map[string]*window),
		now:      time.Now,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	go l.sweepLoop(sweepInterval)

	return l
}

// Allow implements Limiter
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, windowLen time.Duration) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(windowLen)}
		l.windows[key] = w
		return Result{Success: true, Remaining: max(limit-1, 0), ResetAt: w.resetAt}, nil
	}

	if w.count >= limit {
		return Result{Success: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++
	return Result{Success: true, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}

// Sweep drops every window whose deadline has passed and returns how many
// were removed
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop ends the sweeper goroutine
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		<-l.done
	})
}

func (l *MemoryLimiter) sweepLoop(interval time.Duration) {
	defer close(l.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("Swept expired rate limit windows",
					slog.Int("removed", removed),
				)
			}
		}
	}
}
