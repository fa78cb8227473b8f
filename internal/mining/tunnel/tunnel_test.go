package tunnel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/config"
	"voxelminer.ai/internal/mining/miningtest"
	"voxelminer.ai/internal/simworld"
)

// underground carves a body-sized pocket in solid stone and puts the agent in it.
func underground(t *testing.T) *simworld.World {
	t.Helper()
	w := miningtest.Flat(t)
	w.Fill(agent.V(0, 50, 0), agent.V(0, 51, 0), "air")
	w.Teleport(agent.V(0, 50, 0))
	w.Give("stone_pickaxe", 1)
	return w
}

func TestStripDigsCorridorAndMinesWalls(t *testing.T) {
	w := underground(t)
	w.SetBlock(agent.V(1, 50, -3), "iron_ore")
	w.SetBlock(agent.V(-1, 51, -4), "diamond_ore")
	r := miningtest.Run(t, w)

	res := Strip(context.Background(), r, 5)
	require.Equal(t, ReasonLength, res.Reason)
	require.Equal(t, 5, res.Steps)
	require.Equal(t, 1, res.Ores, "diamond needs an iron pickaxe")
	require.Equal(t, agent.V(0, 50, -5), w.Position())
	require.Equal(t, 1, agent.CountItem(w, "raw_iron"))
	for z := -1; z >= -5; z-- {
		for y := 50; y <= 51; y++ {
			b, _ := w.BlockAt(agent.V(0, y, z))
			require.Equal(t, "air", b.Name)
		}
	}
}

func TestStripSidestepsFire(t *testing.T) {
	w := underground(t)
	w.SetBlock(agent.V(0, 50, -3), "fire")
	r := miningtest.Run(t, w)

	res := Strip(context.Background(), r, 5)
	require.Equal(t, ReasonLength, res.Reason)
	require.Equal(t, 5, res.Steps)
	require.Equal(t, agent.V(1, 50, -5), w.Position())
}

func TestStripStopsWhenEveryLaneIsHazardous(t *testing.T) {
	w := underground(t)
	for x := -1; x <= 1; x++ {
		w.SetBlock(agent.V(x, 50, -2), "fire")
	}
	r := miningtest.Run(t, w)

	res := Strip(context.Background(), r, 5)
	require.Equal(t, ReasonHazard, res.Reason)
	require.Zero(t, res.Steps)
	require.Equal(t, agent.V(0, 50, 0), w.Position())
}

func TestStripChecksInventoryAndStop(t *testing.T) {
	w := underground(t)
	r := miningtest.Run(t, w, func(c *config.MiningConfig) { c.InventoryFullThreshold = 36 })
	require.Equal(t, ReasonInventoryFull, Strip(context.Background(), r, 5).Reason)

	r = miningtest.Run(t, w)
	r.Stop("user")
	res := Strip(context.Background(), r, 5)
	require.Equal(t, ReasonStopped, res.Reason)
	require.Zero(t, w.DigCount())
}

func TestBranchReturnsToHubBetweenCorridors(t *testing.T) {
	w := underground(t)
	r := miningtest.Run(t, w)

	res := Branch(context.Background(), r, BranchOptions{TargetY: 50, Length: 3, Count: 2})
	require.Equal(t, ReasonLength, res.Reason)
	require.Equal(t, 2, res.Branches)
	require.Equal(t, 6, res.Steps)
	require.Equal(t, agent.V(0, 50, 0), res.Hub)
	require.Equal(t, res.Hub, w.Position())
	hub, ok := r.Hub()
	require.True(t, ok)
	require.Equal(t, res.Hub, hub)

	for _, end := range []agent.Vec3{agent.V(0, 50, -3), agent.V(3, 50, 0)} {
		b, _ := w.BlockAt(end)
		require.Equal(t, "air", b.Name, end.String())
	}
	b, _ := w.BlockAt(agent.V(0, 50, 3))
	require.Equal(t, "stone", b.Name, "only two branches dug")
}

func TestBranchDescendsFirst(t *testing.T) {
	w := miningtest.Flat(t)
	w.Give("stone_pickaxe", 1)
	r := miningtest.Run(t, w)

	res := Branch(context.Background(), r, BranchOptions{TargetY: 60, Length: 2, Count: 1})
	require.Equal(t, ReasonLength, res.Reason)
	require.Equal(t, 60, res.Hub.Y)
	require.Equal(t, 60, w.LowestY())
}
