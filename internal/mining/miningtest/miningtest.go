// Package miningtest builds simulated worlds and runs for strategy tests.
package miningtest

import (
	"testing"

	"github.com/rs/zerolog"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/config"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/simworld"
)

// Surface is the grass level of Flat worlds; the agent stands one above it.
const Surface = 64

// Flat returns a flat world with the agent standing at the origin, facing north.
func Flat(t testing.TB) *simworld.World {
	t.Helper()
	w := simworld.New(simworld.Options{Generator: simworld.Flat(Surface), MinY: -16, MaxY: 96, Radius: 48})
	w.Teleport(agent.V(0, Surface+1, 0))
	return w
}

// Run binds a session run to w with default config, adjusted by tweak.
func Run(t testing.TB, w *simworld.World, tweak ...func(*config.MiningConfig)) *session.Run {
	t.Helper()
	r, _ := Recorded(t, w, tweak...)
	return r
}

// Recorded is Run with the journal events captured.
func Recorded(t testing.TB, w *simworld.World, tweak ...func(*config.MiningConfig)) (*session.Run, *Events) {
	t.Helper()
	events := &Events{}
	cfg := config.DefaultMining()
	for _, f := range tweak {
		f(&cfg)
	}
	r := session.NewRun(session.Options{
		Agent:   w.Agent(),
		Config:  cfg,
		Catalog: w.Catalog(),
		Logger:  zerolog.Nop(),
		Sink:    events,
	})
	return r, events
}

// Events records run events.
type Events struct {
	List []session.Event
}

func (e *Events) Record(ev session.Event) { e.List = append(e.List, ev) }

// Kinds lists the recorded events of kind.
func (e *Events) Kinds(kind string) []session.Event {
	var out []session.Event
	for _, ev := range e.List {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
