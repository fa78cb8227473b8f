package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/config"
)

func TestAbortReasonSetExactlyOnce(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(t0, 64)

	reason, done := s.AbortReason()
	require.False(t, done)
	require.Empty(t, reason)

	require.True(t, s.Terminate("inventory full", t0.Add(time.Minute)))
	require.False(t, s.Terminate("stopped: user", t0.Add(2*time.Minute)))

	reason, done = s.AbortReason()
	require.True(t, done)
	require.Equal(t, "inventory full", reason)

	st := s.Status()
	require.Equal(t, ModeStopped, st.Mode)
	require.Equal(t, t0.Add(time.Minute), st.EndedAt)

	s.SetMode(ModeVeinMining)
	require.Equal(t, ModeStopped, s.Mode(), "mode frozen after termination")
}

func TestTerminateConcurrentSingleWinner(t *testing.T) {
	s := New(time.Now(), 0)
	var wg sync.WaitGroup
	wins := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Terminate("reason", time.Now()) {
				wins <- "won"
			}
		}(i)
	}
	wg.Wait()
	close(wins)
	n := 0
	for range wins {
		n++
	}
	require.Equal(t, 1, n)
}

func TestRecordBlockCounts(t *testing.T) {
	t0 := time.Unix(100, 0)
	s := New(t0, 10)
	s.RecordBlock(false, t0)
	s.RecordBlock(true, t0.Add(time.Second))
	st := s.Status()
	require.Equal(t, 2, st.MinedBlocks)
	require.Equal(t, 1, st.MinedOres)
	require.Equal(t, t0.Add(time.Second), st.LastOreFoundAt)
	require.NotEmpty(t, st.ID)
}

type fixedNav struct {
	pos    agent.Vec3
	facing agent.Vec3
}

func (n *fixedNav) GoTo(context.Context, agent.Goal, time.Duration) bool { return false }
func (n *fixedNav) Position() agent.Vec3                                 { return n.pos }
func (n *fixedNav) Facing() agent.Vec3                                   { return n.facing }

type captureSink struct{ events []Event }

func (c *captureSink) Record(e Event) { c.events = append(c.events, e) }

func TestRunDirectionCachedUntilReset(t *testing.T) {
	nav := &fixedNav{pos: agent.V(0, 70, 0), facing: agent.Vec3{X: 5, Z: 1}}
	r := NewRun(Options{Agent: agent.Agent{Nav: nav}, Config: config.DefaultMining(), Logger: zerolog.Nop()})

	require.Equal(t, agent.Vec3{X: 1}, r.Direction())
	nav.facing = agent.Vec3{Z: 1}
	require.Equal(t, agent.Vec3{X: 1}, r.Direction(), "cached for the phase")

	r.ResetDirection()
	require.Equal(t, agent.Vec3{Z: 1}, r.Direction())
}

func TestRunStopAndAnnounce(t *testing.T) {
	var said []string
	sink := &captureSink{}
	nav := &fixedNav{pos: agent.V(1, 2, 3)}
	r := NewRun(Options{
		Agent: agent.Agent{
			Nav:       nav,
			Announcer: agent.AnnounceFunc(func(m string) { said = append(said, m) }),
		},
		Config: config.DefaultMining(),
		Logger: zerolog.Nop(),
		Sink:   sink,
	})
	ctx := context.Background()
	require.False(t, r.ShouldStop(ctx))

	r.Stop("user")
	r.Stop("second")
	reason, ok := r.StopRequested()
	require.True(t, ok)
	require.Equal(t, "user", reason)
	require.True(t, r.ShouldStop(ctx))

	r.Announce("mined %d blocks", 7)
	require.Equal(t, []string{"mined 7 blocks"}, said)

	require.True(t, r.Terminate("stopped: user"))
	require.False(t, r.Terminate("again"))
	require.Len(t, sink.events, 2)
	require.Equal(t, EventAnnounce, sink.events[0].Kind)
	require.Equal(t, EventTerminate, sink.events[1].Kind)
	require.Equal(t, r.Session.ID(), sink.events[1].SessionID)
}
