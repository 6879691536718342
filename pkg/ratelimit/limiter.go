// Package ratelimit implements sliding-window call admission control.
//
// A Limiter keeps the timestamps of admitted calls inside the trailing window
// and refuses a call once maxCalls of them are present. One Limiter is meant to
// be shared by every caller that must obey the same budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
)

// Prometheus metrics for admission control.
var (
	admittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alchemy_ratelimit_admitted_total",
		Help: "Total number of calls admitted by the rate limiter",
	})

	waitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alchemy_ratelimit_waits_total",
		Help: "Total number of times a caller had to wait for admission",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alchemy_ratelimit_wait_seconds",
		Help:    "Time spent waiting for rate limiter admission",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// minWait keeps Wait from spinning when the computed wait rounds to zero.
const minWait = time.Millisecond

// Limiter admits at most maxCalls calls within any trailing window.
type Limiter struct {
	maxCalls int
	window   time.Duration

	mu    sync.Mutex
	calls []time.Time

	sink  logging.Sink
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewLimiter creates a limiter allowing maxCalls per window.
// A nil sink discards events.
func NewLimiter(maxCalls int, window time.Duration, sink logging.Sink) (*Limiter, error) {
	if maxCalls <= 0 {
		return nil, fmt.Errorf("max calls must be positive (got %d)", maxCalls)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive (got %v)", window)
	}

	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		calls:    make([]time.Time, 0, maxCalls),
		sink:     logging.OrNop(sink),
		now:      time.Now,
		after:    time.After,
	}, nil
}

// MaxCalls returns the configured call budget per window.
func (l *Limiter) MaxCalls() int { return l.maxCalls }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Admit records a call and returns true when the budget allows it.
// Otherwise it returns false and how long until the oldest call leaves the window.
func (l *Limiter) Admit() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	if len(l.calls) < l.maxCalls {
		l.calls = append(l.calls, now)
		admittedTotal.Inc()
		return true, 0
	}

	return false, l.waitLocked(now)
}

// WaitTime reports the current wait without recording a call.
func (l *Limiter) WaitTime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)
	if len(l.calls) < l.maxCalls {
		return 0
	}
	return l.waitLocked(now)
}

// Len returns the number of admitted calls currently inside the window.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.now())
	return len(l.calls)
}

// Wait blocks until a call is admitted or ctx is done.
// Another caller may take the slot while we sleep, so admission is re-checked
// after every wake-up. On cancellation it returns a cancelled *classify.Error.
func (l *Limiter) Wait(ctx context.Context) error {
	var (
		started time.Time
		waited  bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return classify.Cancelled(err)
		}

		ok, wait := l.Admit()
		if ok {
			if waited {
				elapsed := l.now().Sub(started)
				waitSeconds.Observe(elapsed.Seconds())
				l.sink.Log(logging.Warn, "admission wait end", logging.Fields{
					"delay": elapsed.String(),
				})
			}
			return nil
		}

		if !waited {
			waited = true
			started = l.now()
			waitsTotal.Inc()
			l.sink.Log(logging.Warn, "admission wait start", logging.Fields{
				"delay":     wait.String(),
				"max_calls": l.maxCalls,
				"window":    l.window.String(),
			})
		}

		if wait < minWait {
			wait = minWait
		}
		if wait > l.window {
			wait = l.window
		}

		select {
		case <-ctx.Done():
			return classify.Cancelled(ctx.Err())
		case <-l.after(wait):
		}
	}
}

// pruneLocked drops calls that are at least one window old. l.mu must be held.
func (l *Limiter) pruneLocked(now time.Time) {
	i := 0
	for i < len(l.calls) && now.Sub(l.calls[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// waitLocked returns the time until the oldest call expires. l.mu must be held.
func (l *Limiter) waitLocked(now time.Time) time.Duration {
	if len(l.calls) == 0 {
		return 0
	}
	wait := l.window - now.Sub(l.calls[0])
	if wait < 0 {
		return 0
	}
	return wait
}
