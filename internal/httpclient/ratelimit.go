package httpclient

import (
	"context"
	"sync"
	"time"
)

// WindowLimiter is a sliding-window rate limiter: at most maxRequests sends
// within any rolling window. Saturation makes the caller wait until the
// oldest send ages out (a preemptive wait); a 429 from upstream is reported
// via Penalize and blocks all sends until the penalty expires (a reactive
// wait). Every wait is counted so the data service can surface
// provider_stats.
type WindowLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	sent        []time.Time // send instants inside the current window, oldest first
	penaltyEnd  time.Time

	preemptiveWaits int64
	reactiveWaits   int64
	requests        int64

	now func() time.Time // test hook
}

// NewWindowLimiter builds a limiter allowing maxRequests per window.
// maxRequests <= 0 disables limiting.
func NewWindowLimiter(maxRequests int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Wait blocks until a send slot is available or ctx is done. It must be
// called exactly once per outbound request.
func (l *WindowLimiter) Wait(ctx context.Context) error {
	if l == nil || l.maxRequests <= 0 {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		now := l.now()
		l.evict(now)

		var wait time.Duration
		var reactive bool
		if now.Before(l.penaltyEnd) {
			wait = l.penaltyEnd.Sub(now)
			reactive = true
		} else if len(l.sent) >= l.maxRequests {
			wait = l.sent[0].Add(l.window).Sub(now)
		}

		if wait <= 0 {
			l.sent = append(l.sent, now)
			l.requests++
			l.mu.Unlock()
			return nil
		}
		if reactive {
			l.reactiveWaits++
		} else {
			l.preemptiveWaits++
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Penalize blocks all sends for d from now. Called when upstream answered
// 429; d is the Retry-After value or the adapter's fallback.
func (l *WindowLimiter) Penalize(d time.Duration) {
	if l == nil || d <= 0 {
		return
	}
	l.mu.Lock()
	end := l.now().Add(d)
	if end.After(l.penaltyEnd) {
		l.penaltyEnd = end
	}
	l.mu.Unlock()
}

// evict drops send records older than the window. Caller holds l.mu.
func (l *WindowLimiter) evict(now time.Time) {
	cut := now.Add(-l.window)
	i := 0
	for i < len(l.sent) && !l.sent[i].After(cut) {
		i++
	}
	if i > 0 {
		l.sent = append(l.sent[:0], l.sent[i:]...)
	}
}

// LimiterStats is a point-in-time snapshot of one limiter's counters.
type LimiterStats struct {
	Requests        int64 `json:"requests"`
	PreemptiveWaits int64 `json:"preemptive_waits"`
	ReactiveWaits   int64 `json:"reactive_waits"`
}

// Stats returns the counters since the last Reset.
func (l *WindowLimiter) Stats() LimiterStats {
	if l == nil {
		return LimiterStats{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterStats{
		Requests:        l.requests,
		PreemptiveWaits: l.preemptiveWaits,
		ReactiveWaits:   l.reactiveWaits,
	}
}

// Reset zeroes the counters. The window itself is untouched so resetting
// mid-traffic cannot grant extra capacity.
func (l *WindowLimiter) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.requests = 0
	l.preemptiveWaits = 0
	l.reactiveWaits = 0
	l.mu.Unlock()
}
