package actions

import (
	"context"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/chain"
	"voxelminer.ai/internal/mining/session"
)

// stationSearchRadius bounds the search for an existing station.
const stationSearchRadius = 16

// Placement describes a station to put down near the agent.
type Placement struct {
	Item string
	// ClearOccupied digs out solid cells in the way instead of skipping them.
	ClearOccupied bool
}

// againstOrder is the preference of faces to click when placing: the floor first.
var againstOrder = []agent.Vec3{
	{Y: -1},
	{Z: -1}, {X: 1}, {Z: 1}, {X: -1},
	{Y: 1},
}

// FindStation returns a station block within reach, walking to one nearby if needed.
func FindStation(ctx context.Context, r *session.Run, block string) (agent.Vec3, bool) {
	b, ok := r.Agent.World.FindNearestBlock(r.Position(), func(b agent.Block) bool {
		return b.Name == block
	}, stationSearchRadius)
	if !ok {
		return agent.Vec3{}, false
	}
	if InReach(r, b.Pos) {
		return b.Pos, true
	}
	if GoNear(ctx, r, b.Pos, r.Config.ReachDistance-1) && InReach(r, b.Pos) {
		return b.Pos, true
	}
	return agent.Vec3{}, false
}

// PlaceStation puts p.Item down at the first workable spot: the cell ahead, the four
// cardinals, the four diagonals, the 3x3x3 volume around the body and, last, a freshly
// carved step ahead. Every attempt is verified against the world after a settle delay.
func PlaceStation(ctx context.Context, r *session.Run, p Placement) (agent.Vec3, bool) {
	feet := r.Position()
	dir := r.Direction()
	spots := func(offsets []agent.Vec3) func(context.Context) (agent.Vec3, bool) {
		return func(ctx context.Context) (agent.Vec3, bool) {
			for _, off := range offsets {
				if r.ShouldStop(ctx) {
					return agent.Vec3{}, false
				}
				if pos, ok := tryPlace(ctx, r, p, feet.Add(off)); ok {
					return pos, true
				}
			}
			return agent.Vec3{}, false
		}
	}
	m := chain.First(ctx, []chain.Candidate[agent.Vec3]{
		{Name: "floor-below", Try: spots([]agent.Vec3{dir})},
		{Name: "cardinals", Try: spots(agent.Cardinals)},
		{Name: "diagonals", Try: spots(agent.Diagonals)},
		{Name: "volume", Try: spots(volumeOffsets())},
		{Name: "carve-step", Try: func(ctx context.Context) (agent.Vec3, bool) {
			ahead := feet.Add(dir)
			if Clear(ctx, r, ahead.Up()) != nil || Clear(ctx, r, ahead) != nil {
				return agent.Vec3{}, false
			}
			return tryPlace(ctx, r, p, ahead)
		}},
	})
	if !m.OK {
		r.Log.Warn().Str("item", p.Item).Strs("tried", m.Tried).Msg("no placement position")
		return agent.Vec3{}, false
	}
	r.Log.Debug().Str("item", p.Item).Str("strategy", m.Name).Stringer("pos", m.Value).Msg("placed")
	return m.Value, true
}

// volumeOffsets is the 3x3x3 cube around the feet minus the body's own column.
func volumeOffsets() []agent.Vec3 {
	out := make([]agent.Vec3, 0, 24)
	for _, dy := range []int{0, -1, 1} {
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dz == 0 {
					continue
				}
				out = append(out, agent.Vec3{X: dx, Y: dy, Z: dz})
			}
		}
	}
	return out
}

func tryPlace(ctx context.Context, r *session.Run, p Placement, target agent.Vec3) (agent.Vec3, bool) {
	feet := r.Position()
	if target == feet || target == feet.Up() {
		return agent.Vec3{}, false
	}
	b, ok := r.Agent.World.BlockAt(target)
	if !ok || r.Catalog.IsFluid(b.Name) || r.Catalog.IsHazard(b.Name) {
		return agent.Vec3{}, false
	}
	if !r.Catalog.Passable(b.Name) {
		if !p.ClearOccupied {
			return agent.Vec3{}, false
		}
		if _, err := Dig(ctx, r, target); err != nil {
			r.Log.Debug().Err(err).Stringer("pos", target).Msg("clear for placement failed")
			return agent.Vec3{}, false
		}
	}
	if !InReach(r, target) {
		return agent.Vec3{}, false
	}
	for _, off := range againstOrder {
		against := target.Add(off)
		if !Solid(r, against) {
			continue
		}
		face := agent.Vec3{X: -off.X, Y: -off.Y, Z: -off.Z}
		if err := r.Agent.Act.Place(ctx, p.Item, against, face); err != nil {
			r.Log.Debug().Err(err).Str("item", p.Item).Stringer("pos", target).Msg("place failed")
			return agent.Vec3{}, false
		}
		if err := r.Settle(ctx); err != nil {
			return agent.Vec3{}, false
		}
		got, ok := r.Agent.World.BlockAt(target)
		if ok && got.Name == r.Catalog.PlaceAs(p.Item) {
			return target, true
		}
		r.Log.Debug().Str("item", p.Item).Stringer("pos", target).Msg("placement not verified")
		return agent.Vec3{}, false
	}
	return agent.Vec3{}, false
}

// Reclaim digs a station back up and collects it.
func Reclaim(ctx context.Context, r *session.Run, pos agent.Vec3, item string) bool {
	b, ok := r.Agent.World.BlockAt(pos)
	if !ok || b.Name != r.Catalog.PlaceAs(item) {
		return false
	}
	before := agent.CountItem(r.Agent.Inv, item)
	if _, err := Dig(ctx, r, pos); err != nil {
		r.Log.Warn().Err(err).Str("item", item).Msg("reclaim failed")
		return false
	}
	CollectDrops(ctx, r, pos, 3)
	return agent.CountItem(r.Agent.Inv, item) > before
}
