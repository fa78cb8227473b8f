package smelting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/config"
	"voxelminer.ai/internal/mining/crafting"
	"voxelminer.ai/internal/mining/miningtest"
	"voxelminer.ai/internal/mining/session"
)

func TestQueueRunsOneJobAtATime(t *testing.T) {
	var q Queue
	a := &Job{Kind: KindSmelt, Input: "raw_iron", Amount: 3}
	b := &Job{Kind: KindSmelt, Input: "raw_gold", Amount: 1}
	q.Enqueue(a)
	q.Enqueue(b)

	got, ok := q.Start()
	require.True(t, ok)
	require.Same(t, a, got)
	require.Equal(t, StatusRunning, a.Status)

	_, ok = q.Start()
	require.False(t, ok, "second job waits for the first")
	require.Equal(t, StatusPending, b.Status)
	require.Equal(t, 1, q.Pending())

	q.Finish(a, StatusDone, 3, "")
	got, ok = q.Start()
	require.True(t, ok)
	require.Same(t, b, got)

	q.Finish(b, StatusFailed, 0, "no fuel")
	_, ok = q.Start()
	require.False(t, ok)

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, 1, snap[0].ID)
	require.Equal(t, StatusDone, snap[0].Status)
	require.Equal(t, "no fuel", snap[1].Reason)
}

func TestSmeltRejectsConcurrentCalls(t *testing.T) {
	w := miningtest.Flat(t)
	r := miningtest.Run(t, w)
	o := New(crafting.New())
	o.running.Store(true)

	_, err := o.Smelt(context.Background(), r, &Job{Kind: KindSmelt, Input: "raw_iron", Amount: 1})
	require.ErrorIs(t, err, ErrBusy)
	require.Empty(t, o.Jobs())
}

func TestSmeltThreeRawIronWithPlanks(t *testing.T) {
	ctx := context.Background()
	w := miningtest.Flat(t)
	w.SetBlock(agent.V(1, 65, 0), "furnace")
	w.Give("raw_iron", 3)
	w.Give("oak_planks", 2)
	r, events := miningtest.Recorded(t, w)
	o := New(crafting.New())

	start := w.Now()
	n, err := o.Smelt(ctx, r, &Job{Kind: KindSmelt, Input: "raw_iron", Amount: 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 30*time.Second, w.Now().Sub(start))

	require.Equal(t, 3, agent.CountItem(w, "iron_ingot"))
	require.Zero(t, agent.CountItem(w, "oak_planks"))
	jobs := o.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, StatusDone, jobs[0].Status)
	require.Equal(t, 3, jobs[0].Result)

	jobEvents := events.Kinds(session.EventJob)
	require.Len(t, jobEvents, 2)
	require.Equal(t, "pending", jobEvents[0].Fields["status"])
	require.Equal(t, "done", jobEvents[1].Fields["status"])
	require.Equal(t, session.ModeIdle, r.Session.Mode(), "mode restored after smelting")
}

func TestSmeltFailsWhenFuelRunsOut(t *testing.T) {
	ctx := context.Background()
	w := miningtest.Flat(t)
	w.SetBlock(agent.V(1, 65, 0), "furnace")
	w.Give("raw_iron", 3)
	w.Give("oak_planks", 1)
	r := miningtest.Run(t, w)
	o := New(crafting.New())

	n, err := o.Smelt(ctx, r, &Job{Kind: KindSmelt, Input: "raw_iron", Amount: 3})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	jobs := o.Jobs()
	require.Equal(t, StatusFailed, jobs[0].Status)
	require.Equal(t, 1, jobs[0].Result)
	require.Contains(t, jobs[0].Reason, "fuel exhausted")
	require.Equal(t, 2, agent.CountItem(w, "raw_iron"), "unsmelted input taken back")

	w.Give("raw_gold", 1)
	w.Give("coal", 1)
	n, err = o.Smelt(ctx, r,
		&Job{Kind: KindSmelt, Input: "raw_copper", Amount: 2},
		&Job{Kind: KindSmelt, Input: "raw_gold", Amount: 1},
	)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	jobs = o.Jobs()
	require.Len(t, jobs, 3)
	require.Equal(t, StatusFailed, jobs[1].Status)
	require.Contains(t, jobs[1].Reason, "input not held")
	require.Equal(t, StatusDone, jobs[2].Status, "a failed job does not block the next")
	require.Equal(t, 1, agent.CountItem(w, "gold_ingot"))
}

func TestSmeltTimesOutAndTakesBackInput(t *testing.T) {
	w := miningtest.Flat(t)
	w.SetBlock(agent.V(1, 65, 0), "furnace")
	w.Give("raw_iron", 3)
	w.Give("coal", 1)
	r := miningtest.Run(t, w, func(c *config.MiningConfig) {
		c.Furnace.MinTimeoutSec = 5
		c.Furnace.MaxTimeoutSec = 5
	})
	o := New(crafting.New())

	start := w.Now()
	n, err := o.Smelt(context.Background(), r, &Job{Kind: KindSmelt, Input: "raw_iron", Amount: 3})
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 6*time.Second, w.Now().Sub(start), "gives up on the first poll past the deadline")

	jobs := o.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, StatusFailed, jobs[0].Status)
	require.Contains(t, jobs[0].Reason, "timed out")
	require.Equal(t, 3, agent.CountItem(w, "raw_iron"), "input taken back")
	require.Zero(t, agent.CountItem(w, "iron_ingot"))
	st, ok := w.FurnaceAt(agent.V(1, 65, 0))
	require.True(t, ok)
	require.Zero(t, st.Input.Count)
}

// scriptedFurnace replays furnace states, one per State call.
type scriptedFurnace struct {
	states []agent.ContainerState
	polls  int
	cur    agent.ContainerState
	taken  []agent.ContainerSlot
}

func (f *scriptedFurnace) State() agent.ContainerState {
	f.cur = f.states[min(f.polls, len(f.states)-1)]
	f.polls++
	return f.cur
}

func (f *scriptedFurnace) Put(context.Context, agent.ContainerSlot, string, int) error { return nil }

func (f *scriptedFurnace) Take(_ context.Context, slot agent.ContainerSlot) (agent.ItemStack, error) {
	f.taken = append(f.taken, slot)
	if slot == agent.SlotOutput {
		return f.cur.Output, nil
	}
	return agent.ItemStack{}, nil
}

func (f *scriptedFurnace) Close() error { return nil }

func TestPollWaitsOnceAfterInputEmpties(t *testing.T) {
	ingot := agent.ItemStack{Item: "iron_ingot", Count: 1}
	lastSmelting := agent.ContainerState{Input: agent.ItemStack{Item: "raw_iron", Count: 1}, Output: ingot, Burning: true}
	drained := agent.ContainerState{}

	for _, tc := range []struct {
		name   string
		states []agent.ContainerState
		want   int
	}{
		{name: "late output collected", states: []agent.ContainerState{lastSmelting, drained, {Output: ingot}}, want: 2},
		{name: "nothing lands", states: []agent.ContainerState{lastSmelting, drained, drained, drained}, want: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := miningtest.Run(t, miningtest.Flat(t))
			f := &scriptedFurnace{states: tc.states}

			n, err := New(crafting.New()).poll(context.Background(), r, f, 2)
			require.NoError(t, err)
			require.Equal(t, tc.want, n)
			require.Equal(t, 3, f.polls, "one grace poll after the input empties")
			require.NotContains(t, f.taken, agent.SlotInput)
		})
	}
}

func TestSmeltBuildsAndReclaimsFurnace(t *testing.T) {
	ctx := context.Background()
	w := miningtest.Flat(t)
	w.Give("wooden_pickaxe", 1)
	w.Give("cobblestone", 8)
	w.Give("oak_planks", 10)
	w.Give("raw_iron", 1)
	r := miningtest.Run(t, w)
	r.Tools = crafting.New()
	o := New(crafting.New())

	n, err := o.Smelt(ctx, r, &Job{Kind: KindSmelt, Input: "raw_iron", Amount: 1})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, agent.CountItem(w, "iron_ingot"))
	require.Equal(t, 1, agent.CountItem(w, "furnace"), "furnace dug back up")
	require.Equal(t, 1, agent.CountItem(w, "crafting_table"))
	require.Equal(t, 5, agent.CountItem(w, "oak_planks"))
}

func TestSmeltWithoutFurnaceMaterials(t *testing.T) {
	w := miningtest.Flat(t)
	w.Give("raw_iron", 1)
	w.Give("coal", 1)
	r := miningtest.Run(t, w)
	o := New(crafting.New())

	n, err := o.Smelt(context.Background(), r, &Job{Kind: KindSmelt, Input: "raw_iron", Amount: 1})
	require.NoError(t, err)
	require.Zero(t, n)
	jobs := o.Jobs()
	require.Equal(t, StatusFailed, jobs[0].Status)
	require.Contains(t, jobs[0].Reason, "need 8 cobblestone")
}

func TestChooseFuelNeverBurnsTheInput(t *testing.T) {
	w := miningtest.Flat(t)
	w.Give("oak_log", 5)
	w.Give("oak_planks", 2)
	w.Give("stick", 16)
	r := miningtest.Run(t, w)

	fuel, ok := chooseFuel(r, "oak_log", 3, agent.ItemStack{})
	require.True(t, ok)
	require.Equal(t, agent.ItemStack{Item: "oak_planks", Count: 2}, fuel)

	w.Give("coal", 1)
	fuel, ok = chooseFuel(r, "oak_log", 3, agent.ItemStack{})
	require.True(t, ok)
	require.Equal(t, agent.ItemStack{Item: "coal", Count: 1}, fuel)

	fuel, ok = chooseFuel(r, "raw_iron", 3, agent.ItemStack{Item: "oak_planks", Count: 1})
	require.True(t, ok)
	require.Equal(t, agent.ItemStack{Item: "oak_planks", Count: 2}, fuel, "tops up the loaded fuel type")
}

func TestPlanFuel(t *testing.T) {
	jobs := []*Job{{Kind: KindSmelt, Input: "raw_iron", Amount: 16}}

	t.Run("enough coal", func(t *testing.T) {
		w := miningtest.Flat(t)
		w.Give("coal", 2)
		require.Empty(t, PlanFuel(miningtest.Run(t, w), jobs))
	})
	t.Run("kelp", func(t *testing.T) {
		w := miningtest.Flat(t)
		w.Give("kelp", 9)
		plan := PlanFuel(miningtest.Run(t, w), jobs)
		require.Len(t, plan, 2)
		require.Equal(t, KindDriedKelp, plan[0].Kind)
		require.Equal(t, 9, plan[0].Amount)
		require.Equal(t, KindKelpBlock, plan[1].Kind)
		require.Equal(t, 1, plan[1].Amount)
	})
	t.Run("charcoal from spare logs", func(t *testing.T) {
		w := miningtest.Flat(t)
		w.Give("oak_log", 4)
		plan := PlanFuel(miningtest.Run(t, w), jobs)
		require.Len(t, plan, 1)
		require.Equal(t, KindCharcoal, plan[0].Kind)
		require.Equal(t, "oak_log", plan[0].Input)
		require.Equal(t, 2, plan[0].Amount)
	})
}

func TestFuelCapacity(t *testing.T) {
	w := miningtest.Flat(t)
	w.Give("coal", 1)
	w.Give("oak_planks", 2)
	w.Give("stick", 4)
	r := miningtest.Run(t, w)
	require.InDelta(t, 11.0, FuelCapacity(r, ""), 1e-9)
	require.InDelta(t, 8.0, FuelCapacity(r, "oak_planks"), 1e-9)
}
