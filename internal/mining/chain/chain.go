// Package chain holds the two control combinators the mining strategies are built from:
// an ordered first-match over candidate strategies and a fixed-attempt retry.
package chain

import (
	"context"
	"errors"
	"time"

	"voxelminer.ai/internal/agent"
)

// Candidate is one strategy in an ordered fallback list.
type Candidate[T any] struct {
	Name string
	Try  func(ctx context.Context) (T, bool)
}

// Match is the outcome of First.
type Match[T any] struct {
	Value T
	Name  string
	// Tried lists the candidate names attempted, in order, including the winner.
	Tried []string
	OK    bool
}

// First runs candidates in order and stops at the first success. A cancelled context
// ends the search without trying further candidates.
func First[T any](ctx context.Context, candidates []Candidate[T]) Match[T] {
	var m Match[T]
	for _, c := range candidates {
		if ctx.Err() != nil {
			return m
		}
		m.Tried = append(m.Tried, c.Name)
		v, ok := c.Try(ctx)
		if ok {
			m.Value, m.Name, m.OK = v, c.Name, true
			return m
		}
	}
	return m
}

// Policy configures Retry.
type Policy struct {
	Attempts int
	Delay    time.Duration
	// Retryable decides whether an error is worth another attempt; nil retries everything.
	Retryable func(error) bool
}

// Outcome reports how a retried operation ended.
type Outcome struct {
	Attempts int
	Err      error
	OK       bool
}

// Exhausted reports a retryable failure that used up all attempts.
func (o Outcome) Exhausted(p Policy) bool {
	return !o.OK && o.Attempts >= p.Attempts
}

// AbortedOnly retries only agent.ErrAborted.
func AbortedOnly(err error) bool { return errors.Is(err, agent.ErrAborted) }

// Retry calls fn until it succeeds, returns a non-retryable error, or the attempts run out.
// It never panics or returns the error directly; the caller reads the Outcome.
func Retry(ctx context.Context, clock agent.Clock, p Policy, fn func(ctx context.Context, attempt int) error) Outcome {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var out Outcome
	for i := 1; i <= attempts; i++ {
		out.Attempts = i
		err := fn(ctx, i)
		if err == nil {
			out.OK, out.Err = true, nil
			return out
		}
		out.Err = err
		if p.Retryable != nil && !p.Retryable(err) {
			return out
		}
		if i == attempts {
			break
		}
		if serr := clock.Sleep(ctx, p.Delay); serr != nil {
			out.Err = serr
			return out
		}
	}
	return out
}
