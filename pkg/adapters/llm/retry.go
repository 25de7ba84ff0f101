package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wilhg/reflex/pkg/errmodel"
)

const (
	// DefaultMaxAttempts bounds retries of a single Generate call.
	DefaultMaxAttempts = 3
	// DefaultCallTimeout bounds each individual provider call.
	DefaultCallTimeout = 60 * time.Second
)

// Retrying wraps a provider with per-call timeouts and exponential-backoff
// retries. Context cancellation is permanent: a stopped loop must not keep
// hammering the provider.
type Retrying struct {
	inner       LLM
	maxAttempts uint
	callTimeout time.Duration
}

// RetryOption configures a Retrying wrapper.
type RetryOption func(*Retrying)

// WithMaxAttempts sets the total attempts per Generate call.
func WithMaxAttempts(n int) RetryOption {
	return func(r *Retrying) {
		if n > 0 {
			r.maxAttempts = uint(n)
		}
	}
}

// WithCallTimeout sets the per-attempt timeout.
func WithCallTimeout(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithRetry wraps an LLM with retry behavior.
func WithRetry(inner LLM, opts ...RetryOption) *Retrying {
	r := &Retrying{
		inner:       inner,
		maxAttempts: DefaultMaxAttempts,
		callTimeout: DefaultCallTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name returns the wrapped provider's name.
func (r *Retrying) Name() string { return r.inner.Name() }

// Generate calls the wrapped provider, retrying transient failures.
func (r *Retrying) Generate(ctx context.Context, messages []Message, genOpts map[string]any) (GenerateResult, error) {
	attempt := 0
	op := func() (GenerateResult, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
		res, err := r.inner.Generate(callCtx, messages, genOpts)
		if err != nil {
			if ctx.Err() != nil {
				return GenerateResult{}, backoff.Permanent(ctx.Err())
			}
			return GenerateResult{}, err
		}
		return res, nil
	}
	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(r.maxAttempts),
	)
	if err != nil {
		return GenerateResult{}, errmodel.Provider("PROVIDER_GENERATE", "provider call failed",
			map[string]any{"provider": r.inner.Name(), "attempts": attempt}, err)
	}
	return res, nil
}
