package simworld

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/agent"
)

func newFlat(t *testing.T) *World {
	t.Helper()
	w := New(Options{Generator: Flat(64), MinY: -8, MaxY: 96, Radius: 32})
	w.Teleport(agent.V(0, 65, 0))
	return w
}

func TestDigDropsOnlyWithSufficientTool(t *testing.T) {
	ctx := context.Background()
	w := newFlat(t)
	w.Fill(agent.V(1, 65, 0), agent.V(1, 66, 0), "stone")

	require.NoError(t, w.Dig(ctx, agent.V(1, 66, 0)))
	require.NoError(t, w.Sleep(ctx, time.Second))
	require.Zero(t, agent.CountItem(w, "cobblestone"), "bare hands break stone without a drop")

	w.Give("wooden_pickaxe", 1)
	require.NoError(t, w.Equip(ctx, "wooden_pickaxe", agent.SlotHand))
	require.NoError(t, w.Dig(ctx, agent.V(1, 65, 0)))
	require.Zero(t, agent.CountItem(w, "cobblestone"), "pickup waits for the delay")
	require.NoError(t, w.Sleep(ctx, time.Second))
	require.Equal(t, 1, agent.CountItem(w, "cobblestone"))
	require.Equal(t, 2, w.DigCount())
}

func TestDigErrors(t *testing.T) {
	ctx := context.Background()
	w := newFlat(t)

	require.ErrorIs(t, w.Dig(ctx, agent.V(0, 70, 0)), agent.ErrInvalidTarget, "air")
	require.ErrorIs(t, w.Dig(ctx, agent.V(0, -8, 0)), agent.ErrInvalidTarget, "bedrock and out of reach")
	require.ErrorIs(t, w.Dig(ctx, agent.V(0, 200, 0)), agent.ErrInvalidTarget, "unloaded")

	w.AbortNextDigs(2)
	require.ErrorIs(t, w.Dig(ctx, agent.V(0, 64, 0)), agent.ErrAborted)
	require.ErrorIs(t, w.Dig(ctx, agent.V(0, 64, 0)), agent.ErrAborted)
	require.NoError(t, w.Dig(ctx, agent.V(0, 64, 0)))
	require.Equal(t, 64, w.Position().Y, "body falls into the dug floor")
}

func TestGravityBlocksFall(t *testing.T) {
	ctx := context.Background()
	w := newFlat(t)
	w.SetBlock(agent.V(2, 65, 0), "stone")
	w.SetBlock(agent.V(2, 66, 0), "gravel")
	w.SetBlock(agent.V(2, 67, 0), "sand")

	require.NoError(t, w.Dig(ctx, agent.V(2, 65, 0)))
	b, _ := w.BlockAt(agent.V(2, 65, 0))
	require.Equal(t, "gravel", b.Name)
	b, _ = w.BlockAt(agent.V(2, 66, 0))
	require.Equal(t, "sand", b.Name)
	b, _ = w.BlockAt(agent.V(2, 67, 0))
	require.Equal(t, "air", b.Name)
}

func TestGoToWalksAndDropsDown(t *testing.T) {
	ctx := context.Background()
	w := newFlat(t)
	w.SetBlock(agent.V(0, 64, -3), "air")

	start := w.Now()
	require.True(t, w.GoTo(ctx, agent.Goal{Pos: agent.V(0, 64, -3)}, 10*time.Second))
	require.Equal(t, agent.V(0, 64, -3), w.Position())
	require.Equal(t, agent.Vec3{Z: -1}, w.Facing())
	require.Equal(t, 3*200*time.Millisecond, w.Now().Sub(start))

	require.False(t, w.GoTo(ctx, agent.Goal{Pos: agent.V(0, 10, 0)}, time.Second), "no path through stone")

	w.FailNextGoTo(1)
	require.False(t, w.GoTo(ctx, agent.Goal{Pos: agent.V(0, 65, 0)}, time.Second))
	require.True(t, w.GoTo(ctx, agent.Goal{Pos: agent.V(0, 65, 0), Range: 1}, 10*time.Second))
}

func TestPlaceAndCraft(t *testing.T) {
	ctx := context.Background()
	w := newFlat(t)
	w.Give("oak_log", 3)

	require.NoError(t, w.Craft(ctx, "oak_planks", 3, nil))
	require.Equal(t, 12, agent.CountItem(w, "oak_planks"))
	require.NoError(t, w.Craft(ctx, "crafting_table", 1, nil))
	require.ErrorIs(t, w.Craft(ctx, "wooden_pickaxe", 1, nil), agent.ErrBlocked)

	require.ErrorIs(t, w.Place(ctx, "crafting_table", agent.V(0, 64, 0), agent.Vec3{Y: 1}), agent.ErrBlocked, "feet cell")
	require.NoError(t, w.Place(ctx, "crafting_table", agent.V(1, 64, 0), agent.Vec3{Y: 1}))
	table := agent.V(1, 65, 0)

	require.ErrorIs(t, w.Craft(ctx, "wooden_pickaxe", 1, &table), agent.ErrNoResource)
	require.NoError(t, w.Craft(ctx, "stick", 1, nil))
	require.NoError(t, w.Craft(ctx, "wooden_pickaxe", 1, &table))
	require.Equal(t, 1, agent.CountItem(w, "wooden_pickaxe"))
	require.Equal(t, []string{"oak_planks", "oak_planks", "oak_planks", "crafting_table", "stick", "wooden_pickaxe"}, w.Crafted())
}

func TestFurnaceSmeltsByFuelDuration(t *testing.T) {
	ctx := context.Background()
	w := newFlat(t)
	w.SetBlock(agent.V(1, 65, 0), "furnace")
	w.Give("raw_iron", 3)
	w.Give("oak_planks", 2)

	c, err := w.OpenStation(ctx, agent.V(1, 65, 0))
	require.NoError(t, err)
	require.ErrorIs(t, c.Put(ctx, agent.SlotFuel, "raw_iron", 1), agent.ErrInvalidTarget)
	require.NoError(t, c.Put(ctx, agent.SlotFuel, "oak_planks", 2))
	require.NoError(t, c.Put(ctx, agent.SlotInput, "raw_iron", 3))

	require.NoError(t, w.Sleep(ctx, 10*time.Second))
	st := c.State()
	require.Equal(t, 1, st.Output.Count)
	require.True(t, st.Burning)

	require.NoError(t, w.Sleep(ctx, 20*time.Second))
	st = c.State()
	require.Equal(t, agent.ItemStack{Item: "iron_ingot", Count: 3}, st.Output)
	require.Zero(t, st.Input.Count)
	require.Zero(t, st.Fuel.Count, "two planks burn exactly three items")

	got, err := c.Take(ctx, agent.SlotOutput)
	require.NoError(t, err)
	require.Equal(t, 3, got.Count)
	require.NoError(t, c.Close())
	_, err = c.Take(ctx, agent.SlotOutput)
	require.ErrorIs(t, err, agent.ErrInvalidTarget)
}

func TestFurnaceStallsWithoutFuel(t *testing.T) {
	ctx := context.Background()
	w := newFlat(t)
	w.SetBlock(agent.V(1, 65, 0), "furnace")
	w.Give("raw_iron", 3)
	w.Give("stick", 1)

	c, err := w.OpenStation(ctx, agent.V(1, 65, 0))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, agent.SlotFuel, "stick", 1))
	require.NoError(t, c.Put(ctx, agent.SlotInput, "raw_iron", 3))
	require.NoError(t, w.Sleep(ctx, time.Minute))

	st := c.State()
	require.Zero(t, st.Output.Count, "half an item of burn never completes one")
	require.Equal(t, 3, st.Input.Count)
	require.False(t, st.Burning)
}

func TestInventorySlotsAndStacks(t *testing.T) {
	w := New(Options{Generator: Flat(10), MinY: 0, MaxY: 20, Slots: 3})
	require.Equal(t, 0, w.Give("cobblestone", 100))
	require.Equal(t, 1, w.EmptySlotCount())
	require.Equal(t, 0, w.Give("wooden_pickaxe", 1))
	require.Equal(t, 1, w.Give("stone_pickaxe", 1), "tools do not stack")
	require.Zero(t, w.EmptySlotCount())
}

func TestFindNearestBlockPicksClosest(t *testing.T) {
	w := newFlat(t)
	w.SetBlock(agent.V(5, 60, 0), "iron_ore")
	w.SetBlock(agent.V(2, 62, 1), "iron_ore")

	b, ok := w.FindNearestBlock(w.Position(), func(b agent.Block) bool { return b.Name == "iron_ore" }, 16)
	require.True(t, ok)
	require.Equal(t, agent.V(2, 62, 1), b.Pos)

	_, ok = w.FindNearestBlock(w.Position(), func(b agent.Block) bool { return b.Name == "diamond_ore" }, 8)
	require.False(t, ok)
}

func TestTerrainIsDeterministic(t *testing.T) {
	a := NewTerrain(42, 70)
	b := NewTerrain(42, 70)
	for x := -20; x <= 20; x += 5 {
		for z := -20; z <= 20; z += 5 {
			require.Equal(t, a.SurfaceY(x, z), b.SurfaceY(x, z))
			for y := -40; y <= 60; y += 10 {
				require.Equal(t, a.Block(x, y, z), b.Block(x, y, z))
			}
		}
	}
	s := a.SurfaceY(0, 0)
	require.Equal(t, "grass_block", a.Block(0, s, 0))
	require.Equal(t, "dirt", a.Block(0, s-1, 0))
}

func TestSpawnStandsOnOpenGround(t *testing.T) {
	w := Spawn(SpawnOptions{Seed: 7, SurfaceY: 80, Logs: 5})
	pos := w.Position()
	below, _ := w.BlockAt(pos.Down())
	require.NotEqual(t, "air", below.Name)
	here, _ := w.BlockAt(pos)
	require.Equal(t, "air", here.Name)
	require.Equal(t, 5, agent.CountItem(w, "oak_log"))
}
