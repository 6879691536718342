// Package retry wraps operations with classified, exponential-backoff retries.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
	"github.com/Sternrassler/alchemy-client/pkg/logging"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alchemy_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"error_kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alchemy_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alchemy_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"error_kind"})
)

// Admitter gates each attempt. *ratelimit.Limiter satisfies it.
type Admitter interface {
	Wait(ctx context.Context) error
}

// Operation is a unit of work the Retrier may run more than once.
type Operation[T any] func(ctx context.Context) (T, error)

// Options configures a Retrier.
type Options struct {
	// Classifier decides what to do with a failure (default classify.Default).
	Classifier classify.Classifier

	// Limiter, when set, is waited on before every attempt.
	Limiter Admitter

	// Sink receives retry events (default: discard).
	Sink logging.Sink
}

// Retrier runs operations under a Policy. It holds no per-call state and may
// be shared by concurrent callers.
type Retrier struct {
	classifier classify.Classifier
	limiter    Admitter
	sink       logging.Sink

	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Retrier.
func New(opts Options) *Retrier {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = classify.Default
	}
	return &Retrier{
		classifier: classifier,
		limiter:    opts.Limiter,
		sink:       logging.OrNop(opts.Sink),
		jitter:     rand.Float64,
		sleep:      sleepContext,
	}
}

// Throttled reports whether every attempt is admitted by a rate limiter.
func (r *Retrier) Throttled() bool {
	return r.limiter != nil
}

// Execute runs op until it succeeds, fails terminally, or policy.MaxRetries
// retries have been used. Every returned error is a *classify.Error: the
// terminal failure itself, a cancelled error, or a retries_exhausted error
// wrapping the last failure.
func Execute[T any](ctx context.Context, r *Retrier, name string, policy Policy, op Operation[T]) (T, error) {
	var zero T
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return zero, classify.Cancelled(err)
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return zero, r.classifier.Classify(name, err)
			}
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.sink.Log(logging.Info, "request succeeded after retry", logging.Fields{
					"operation": name,
					"attempt":   attempt,
				})
			}
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, classify.Cancelled(ctxErr)
		}

		ce := r.classifier.Classify(name, err)
		if ce == nil {
			ce = classify.Classify(name, err)
		}

		if ce.Category == classify.Terminal {
			r.sink.Log(logging.Error, "terminal failure", logging.Fields{
				"operation":   name,
				"error_kind":  string(ce.Kind),
				"status_code": ce.StatusCode,
				"error":       ce,
			})
			return zero, ce
		}

		attempt++
		if attempt > policy.MaxRetries {
			retryExhaustedTotal.WithLabelValues(string(ce.Kind)).Inc()
			r.sink.Log(logging.Warn, "retry attempts exhausted", logging.Fields{
				"operation":   name,
				"error_kind":  string(ce.Kind),
				"max_retries": policy.MaxRetries,
			})
			return zero, classify.Exhausted(attempt, ce)
		}

		retriesTotal.WithLabelValues(string(ce.Kind)).Inc()

		if ce.Category == classify.RetryImmediate {
			r.sink.Log(logging.Warn, "retrying immediately", logging.Fields{
				"operation":  name,
				"attempt":    attempt,
				"error_kind": string(ce.Kind),
			})
			continue
		}

		delay := policy.backoff(attempt, ce.RetryAfter)
		wait := delay + policy.jitter(delay, r.jitter())
		retryBackoffSeconds.WithLabelValues(string(ce.Kind)).Observe(wait.Seconds())

		r.sink.Log(logging.Warn, "retry scheduled", logging.Fields{
			"operation":   name,
			"attempt":     attempt,
			"max_retries": policy.MaxRetries,
			"delay":       wait.String(),
			"error_kind":  string(ce.Kind),
			"status_code": ce.StatusCode,
		})

		if err := r.sleep(ctx, wait); err != nil {
			r.sink.Log(logging.Warn, "context cancelled during retry backoff", logging.Fields{
				"operation": name,
				"attempt":   attempt,
			})
			return zero, classify.Cancelled(err)
		}
	}
}

// Do is Execute for operations without a result.
func Do(ctx context.Context, r *Retrier, name string, policy Policy, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, r, name, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Wrap returns op decorated with retries, for call sites that want a plain function.
func Wrap[T any](r *Retrier, name string, policy Policy, op Operation[T]) Operation[T] {
	return func(ctx context.Context) (T, error) {
		return Execute(ctx, r, name, policy, op)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
