// Package ratelimit implements a fixed-window request counter keyed by an
// arbitrary string, with an in-process and a Redis-backed store.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single Allow call
type Result struct {
	Success   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts hits per key inside a fixed window.
//
// The first hit on a key (or the first after its window elapsed) opens a
// new window with count 1. Below limit each hit increments and succeeds;
// at or above limit hits fail with zero remaining and the count stays put.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}
