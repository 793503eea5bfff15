package clients

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces requests to the source API with a token bucket. A 429
// pauses it: no request leaves before the server's Retry-After elapses, and
// the tokens that would have accrued meanwhile are discarded so the retry
// is not followed by a burst.
type Throttle struct {
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	pausedUntil time.Time
	waits       int64
	waited      time.Duration
}

// ThrottleStats reports how much the throttle delayed requests
type ThrottleStats struct {
	// Rate is 0 when only pauses are enforced
	Rate        float64       `json:"rate"`
	Burst       int           `json:"burst"`
	Waits       int64         `json:"waits"`
	TotalWait   time.Duration `json:"total_wait"`
	PausedUntil time.Time     `json:"paused_until,omitempty"`
}

// ThrottleOption customizes a Throttle
type ThrottleOption func(*Throttle)

// WithThrottleClock replaces time.Now and the timer-based sleep
func WithThrottleClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) ThrottleOption {
	return func(t *Throttle) {
		t.now = now
		t.sleep = sleep
	}
}

// NewThrottle allows perSec requests per second with the given burst. A
// perSec of zero or less only enforces pauses.
func NewThrottle(perSec float64, burst int, opts ...ThrottleOption) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	t := &Throttle{
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Wait blocks until the next request may be sent or ctx is done
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	now := t.now()
	at := now
	if t.pausedUntil.After(at) {
		at = t.pausedUntil
	}
	res := t.limiter.ReserveN(at, 1)
	if !res.OK() {
		t.mu.Unlock()
		return context.DeadlineExceeded
	}
	delay := res.DelayFrom(now)
	if delay > 0 {
		t.waits++
		t.waited += delay
	}
	t.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	if err := t.sleep(ctx, delay); err != nil {
		res.CancelAt(t.now())
		return err
	}
	return nil
}

// Pause holds every request until d from now. The bucket is drained down to
// a single token as of the end of the pause.
func (t *Throttle) Pause(d time.Duration) {
	if d <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	until := t.now().Add(d)
	if until.After(t.pausedUntil) {
		t.pausedUntil = until
	}
	if t.limiter.Limit() == rate.Inf {
		return
	}
	if extra := int(t.limiter.TokensAt(t.pausedUntil)) - 1; extra > 0 {
		t.limiter.ReserveN(t.pausedUntil, extra)
	}
}

// Stats returns a snapshot of the throttle counters
func (t *Throttle) Stats() ThrottleStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := ThrottleStats{
		Burst:     t.limiter.Burst(),
		Waits:     t.waits,
		TotalWait: t.waited,
	}
	if limit := t.limiter.Limit(); limit != rate.Inf {
		stats.Rate = float64(limit)
	}
	if t.pausedUntil.After(t.now()) {
		stats.PausedUntil = t.pausedUntil
	}
	return stats
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
