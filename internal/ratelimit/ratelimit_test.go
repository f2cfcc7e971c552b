package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives a Limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (f *fakeClock) install(l *Limiter) {
	l.now = func() time.Time { return f.now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		f.now = f.now.Add(d)
		return nil
	}
}

func TestAcquireSpacesRequests(t *testing.T) {
	clock := newFakeClock()
	l := New(time.Second)
	clock.install(l)

	ctx := context.Background()

	// First acquire goes through immediately.
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("first acquire slept %v, want no sleep", clock.sleeps)
	}

	// Second acquire must wait out the interval.
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != time.Second {
		t.Errorf("sleeps = %v, want [1s]", clock.sleeps)
	}
}

func TestAcquireZeroInterval(t *testing.T) {
	clock := newFakeClock()
	l := New(0)
	clock.install(l)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("zero-interval limiter slept %v", clock.sleeps)
	}
}

func TestRecordThrottleBacksOff(t *testing.T) {
	clock := newFakeClock()
	l := New(time.Second)
	clock.install(l)

	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	l.RecordThrottle(0)
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	firstWait := clock.sleeps[len(clock.sleeps)-1]
	if firstWait < time.Second {
		t.Errorf("wait after throttle = %v, want >= 1s", firstWait)
	}

	// The penalty doubles on repeated throttles.
	l.RecordThrottle(0)
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	secondWait := clock.sleeps[len(clock.sleeps)-1]
	if secondWait <= firstWait {
		t.Errorf("second throttle wait = %v, want > %v", secondWait, firstWait)
	}
}

func TestRecordThrottleHonorsRetryAfter(t *testing.T) {
	clock := newFakeClock()
	l := New(time.Second)
	clock.install(l)

	l.RecordThrottle(30 * time.Second)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 30*time.Second {
		t.Errorf("sleeps = %v, want [30s] from Retry-After", clock.sleeps)
	}
}

func TestRecordThrottleCapped(t *testing.T) {
	clock := newFakeClock()
	l := New(time.Second)
	clock.install(l)

	for i := 0; i < 20; i++ {
		l.RecordThrottle(0)
	}

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if wait := clock.sleeps[0]; wait > maxPenalty {
		t.Errorf("wait = %v exceeds the %v cap", wait, maxPenalty)
	}
}

func TestRecordSuccessClearsPenalty(t *testing.T) {
	clock := newFakeClock()
	l := New(time.Second)
	clock.install(l)

	l.RecordThrottle(0)
	l.RecordSuccess()

	// Burn the throttle's nextAllowed reservation, then check spacing is
	// back to the base interval.
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	clock.sleeps = nil
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != time.Second {
		t.Errorf("sleeps = %v, want [1s] after penalty cleared", clock.sleeps)
	}
}

func TestAcquireCancelledContext(t *testing.T) {
	l := New(time.Minute)

	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(cancelled); err == nil {
		t.Error("expected error from cancelled context while waiting")
	}
}
