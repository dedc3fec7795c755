package sheets

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// LimiterConfig tunes the write limiter. Window/WindowLimit form a sliding
// window kept safely below the provider quota; WriteDelay is the minimum
// spacing between consecutive writes.
type LimiterConfig struct {
	Window      time.Duration
	WindowLimit int
	WriteDelay  time.Duration
	MaxRetries  int
}

// DefaultLimiterConfig stays below a 60-writes-per-minute provider quota.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Window:      time.Minute,
		WindowLimit: 50,
		WriteDelay:  2 * time.Second,
		MaxRetries:  5,
	}
}

const (
	retryStep = 45 * time.Second
	retryCap  = 300 * time.Second
)

// Limiter serializes writes to the remote store and keeps them under the
// provider quota. When the provider still reports quota exhaustion, Execute
// backs off with growing pauses and clears the window, since the provider's
// accounting evidently disagrees with ours.
type Limiter struct {
	mu        sync.Mutex
	cfg       LimiterConfig
	stamps    []time.Time
	lastWrite time.Time

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter with the given configuration.
func NewLimiter(cfg LimiterConfig) *Limiter {
	return &Limiter{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// prune drops window entries older than the window. Caller must hold the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	l.stamps = l.stamps[i:]
}

// waitDelay returns how long the next write must wait. Caller must hold the lock.
func (l *Limiter) waitDelay(now time.Time) time.Duration {
	var delay time.Duration

	if !l.lastWrite.IsZero() {
		if since := now.Sub(l.lastWrite); since < l.cfg.WriteDelay {
			delay = l.cfg.WriteDelay - since
		}
	}

	if len(l.stamps) >= l.cfg.WindowLimit {
		// Wait until the oldest entry ages out of the window.
		free := l.stamps[len(l.stamps)-l.cfg.WindowLimit].Add(l.cfg.Window).Sub(now)
		if free > delay {
			delay = free
		}
	}

	return delay
}

// Execute runs one write against the remote store under the limiter. It
// blocks until a window slot is free, then retries quota failures with
// growing pauses up to MaxRetries.
func (l *Limiter) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if err := l.acquire(ctx); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsQuota(err) {
			return err
		}
		lastErr = err

		if attempt == l.cfg.MaxRetries {
			break
		}

		pause := time.Duration(attempt+1) * retryStep
		if pause > retryCap {
			pause = retryCap
		}
		log.Printf("[SheetLimiter] Quota exhausted, backing off %s (attempt %d/%d)", pause, attempt+1, l.cfg.MaxRetries)
		if err := l.sleep(ctx, pause); err != nil {
			return err
		}

		// The provider refused despite our accounting, so start the
		// window over after the pause.
		l.mu.Lock()
		l.stamps = nil
		l.lastWrite = time.Time{}
		l.mu.Unlock()
	}

	return fmt.Errorf("write retries exhausted: %w", lastErr)
}

// acquire blocks until a write slot is available, then records the write.
func (l *Limiter) acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		delay := l.waitDelay(now)
		if delay <= 0 {
			l.stamps = append(l.stamps, now)
			l.lastWrite = now
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// CapacityRemaining returns how many writes can start right now without
// blocking on the window. Used as a pre-flight check for bulk uploads.
func (l *Limiter) CapacityRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	remaining := l.cfg.WindowLimit - len(l.stamps)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Usage returns the current window occupancy and its limit.
func (l *Limiter) Usage() (used, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	return len(l.stamps), l.cfg.WindowLimit
}

// ResetIn returns how long until the oldest window entry ages out, zero when
// the window is empty.
func (l *Limiter) ResetIn() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.stamps) == 0 {
		return 0
	}
	return l.stamps[0].Add(l.cfg.Window).Sub(now)
}
