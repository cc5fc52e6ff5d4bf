package retry

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultStart       = 2 * time.Second
	defaultMultiplier  = 2.0
	defaultMaxAttempts = 3
)

// Policy describes how a request is retried. It holds no mutable state; each
// call derives its own delay accumulator.
type Policy struct {
	Start       time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultPolicy waits 2s, then 4s, for at most 3 attempts.
func DefaultPolicy() Policy {
	return Policy{Start: defaultStart, Multiplier: defaultMultiplier, MaxAttempts: defaultMaxAttempts}
}

// Validate enforces multiplier >= 1 and at least one attempt.
func (p Policy) Validate() error {
	var errs []error
	if p.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("backoff multiplier must be >= 1, got %v", p.Multiplier))
	}
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("backoff attempt limit must be >= 1, got %d", p.MaxAttempts))
	}
	if p.Start < 0 {
		errs = append(errs, fmt.Errorf("backoff start must not be negative, got %s", p.Start))
	}
	return errors.Join(errs...)
}

// Delays lists the sleeps taken between attempts if every attempt fails.
func (p Policy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	b := p.newBackOff()
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Start
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
