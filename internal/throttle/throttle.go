// Package throttle paces calls to rate-limited embedding services.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docqa/internal/config"

	"golang.org/x/time/rate"
)

// Limiter blocks until the next call may proceed.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Clock abstracts time so Interval can be tested without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Interval spaces calls at least interval apart. The first call never waits.
type Interval struct {
	mu       sync.Mutex
	interval time.Duration
	clock    Clock
	last     time.Time
	started  bool
}

func NewInterval(interval time.Duration) *Interval {
	return NewIntervalWithClock(interval, realClock{})
}

func NewIntervalWithClock(interval time.Duration, clock Clock) *Interval {
	return &Interval{interval: interval, clock: clock}
}

func (l *Interval) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		if remaining := l.interval - l.clock.Now().Sub(l.last); remaining > 0 {
			if err := l.clock.Sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	l.started = true
	l.last = l.clock.Now()
	return nil
}

// TokenBucket allows bursts of up to burst calls, refilled one token per
// interval.
type TokenBucket struct {
	limiter *rate.Limiter
}

func NewTokenBucket(interval time.Duration, burst int) *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

func (b *TokenBucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// New builds the limiter selected by cfg.Mode.
func New(cfg config.RateLimitConfig) (Limiter, error) {
	switch cfg.Mode {
	case config.RateLimitInterval, "":
		return NewInterval(cfg.Interval), nil
	case config.RateLimitTokenBucket:
		return NewTokenBucket(cfg.Interval, cfg.Burst), nil
	default:
		return nil, fmt.Errorf("unknown rate limit mode: %s", cfg.Mode)
	}
}
