// Package ratelimit paces outbound requests to one external provider.
//
// One Limiter instance exists per provider and is shared by every
// concurrent resolution run, so the process as a whole never exceeds the
// provider's quota. All clock state is mutated under a single mutex.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Maximum backoff penalty after repeated rate-limit responses.
const maxPenalty = 2 * time.Minute

// Limiter spaces requests at least MinInterval apart and adds a backoff
// penalty after rate-limit responses.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	penalty     time.Duration
	nextAllowed time.Time

	// Overridable for testing.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter with the given minimum interval between requests.
// A zero interval disables spacing but keeps backoff behavior.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Acquire blocks until the next request may be sent, or until ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	wait := l.nextAllowed.Sub(now)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot before sleeping so concurrent acquirers queue up
	// instead of stampeding when the mutex is released.
	start := now.Add(wait)
	l.nextAllowed = start.Add(l.minInterval + l.penalty)
	l.mu.Unlock()

	if wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// RecordSuccess clears any backoff penalty.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	l.penalty = 0
	l.mu.Unlock()
}

// RecordThrottle registers a rate-limit response. retryAfter, when
// positive, comes from the provider's Retry-After header and sets the
// penalty directly; otherwise the penalty doubles up to a cap.
func (l *Limiter) RecordThrottle(retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case retryAfter > 0:
		l.penalty = retryAfter
	case l.penalty == 0:
		l.penalty = l.minInterval
		if l.penalty == 0 {
			l.penalty = time.Second
		}
	default:
		l.penalty *= 2
	}
	if l.penalty > maxPenalty {
		l.penalty = maxPenalty
	}
	l.nextAllowed = l.now().Add(l.penalty)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
