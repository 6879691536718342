package retry

import (
	"fmt"
	"math"
	"time"
)

// Policy is the immutable retry configuration for one Execute call.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff and any server wait hint.
	MaxDelay time.Duration

	// JitterFraction adds up to JitterFraction*delay of random extra wait. Must be in [0, 1).
	JitterFraction float64
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.1,
	}
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0 (got %d)", p.MaxRetries)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive (got %v)", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay %v must be >= base delay %v", p.MaxDelay, p.BaseDelay)
	}
	if p.JitterFraction < 0 || p.JitterFraction >= 1 || math.IsNaN(p.JitterFraction) {
		return fmt.Errorf("jitter fraction must be in [0, 1) (got %v)", p.JitterFraction)
	}
	return nil
}

// Delay returns the pre-jitter backoff for the given retry attempt (1-based):
// min(MaxDelay, BaseDelay * 2^(attempt-1)).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// backoff combines the exponential delay with a server hint, capped at MaxDelay.
func (p Policy) backoff(attempt int, hint time.Duration) time.Duration {
	d := p.Delay(attempt)
	if hint > d {
		d = hint
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// jitter returns the random extra wait for delay given a uniform sample u in [0, 1).
func (p Policy) jitter(delay time.Duration, u float64) time.Duration {
	return time.Duration(u * p.JitterFraction * float64(delay))
}
