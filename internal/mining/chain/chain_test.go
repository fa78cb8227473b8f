package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/agent"
)

type stepClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func TestFirstStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	mk := func(name string, ok bool) Candidate[int] {
		return Candidate[int]{Name: name, Try: func(context.Context) (int, bool) {
			calls = append(calls, name)
			return len(name), ok
		}}
	}
	m := First(context.Background(), []Candidate[int]{mk("floor", false), mk("cardinal", true), mk("diagonal", true)})
	require.True(t, m.OK)
	require.Equal(t, "cardinal", m.Name)
	require.Equal(t, 8, m.Value)
	require.Equal(t, []string{"floor", "cardinal"}, m.Tried)
	require.Equal(t, []string{"floor", "cardinal"}, calls)
}

func TestFirstNoMatch(t *testing.T) {
	m := First(context.Background(), []Candidate[string]{
		{Name: "a", Try: func(context.Context) (string, bool) { return "", false }},
	})
	require.False(t, m.OK)
	require.Equal(t, []string{"a"}, m.Tried)
}

func TestFirstHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := First(ctx, []Candidate[int]{{Name: "a", Try: func(context.Context) (int, bool) { return 1, true }}})
	require.False(t, m.OK)
	require.Empty(t, m.Tried)
}

func TestRetryAbortedThenSuccess(t *testing.T) {
	clock := &stepClock{}
	n := 0
	p := Policy{Attempts: 3, Delay: 300 * time.Millisecond, Retryable: AbortedOnly}
	out := Retry(context.Background(), clock, p, func(context.Context, int) error {
		n++
		if n < 3 {
			return agent.ErrAborted
		}
		return nil
	})
	require.True(t, out.OK)
	require.Equal(t, 3, out.Attempts)
	require.Len(t, clock.sleeps, 2)
}

func TestRetryExhausted(t *testing.T) {
	clock := &stepClock{}
	p := Policy{Attempts: 3, Delay: time.Millisecond, Retryable: AbortedOnly}
	out := Retry(context.Background(), clock, p, func(context.Context, int) error { return agent.ErrAborted })
	require.False(t, out.OK)
	require.True(t, out.Exhausted(p))
	require.ErrorIs(t, out.Err, agent.ErrAborted)
}

func TestRetryStopsOnHardError(t *testing.T) {
	clock := &stepClock{}
	hard := errors.New("unbreakable")
	p := Policy{Attempts: 3, Retryable: AbortedOnly}
	out := Retry(context.Background(), clock, p, func(context.Context, int) error { return hard })
	require.False(t, out.OK)
	require.Equal(t, 1, out.Attempts)
	require.False(t, out.Exhausted(p))
	require.ErrorIs(t, out.Err, hard)
}
