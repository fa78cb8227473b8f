package automine

import (
	"context"
	"fmt"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/actions"
	"voxelminer.ai/internal/mining/crafting"
	"voxelminer.ai/internal/mining/descent"
	"voxelminer.ai/internal/mining/hazard"
	"voxelminer.ai/internal/mining/tooltier"
	"voxelminer.ai/internal/mining/tunnel"
	"voxelminer.ai/internal/mining/vein"
)

// mainLoop descends to the target depth and then mines the best reachable ore each
// cycle until the inventory fills. Consecutive cycles without ore branch out from the
// current spot, or strip-tunnel to fresh ground when that spot is already a hub.
func (m *miner) mainLoop(ctx context.Context) (string, error) {
	r := m.r
	r.Phase("main_loop", map[string]any{"target_depth": r.Config.TargetDepth, "tier": m.pickaxeTier().String()})
	if r.Position().Y > r.Config.TargetDepth {
		res := descent.New(r, descent.Options{TargetY: r.Config.TargetDepth, CollectOres: true}).Run(ctx)
		r.Log.Info().Str("reason", string(res.Reason)).Int("depth", res.Depth).Msg("target descent done")
	}
	r.Announce("mining at y=%d with a %s pickaxe", r.TrackDepth(), m.pickaxeTier())

	for {
		if reason, done, err := m.checkpoint(ctx); done {
			return reason, err
		}
		m.cycles++
		m.upgrade(ctx)

		if b, ok := m.findOre(nil); ok && m.extract(ctx, b) > 0 {
			m.misses = 0
		} else {
			m.misses++
			if m.misses >= r.Config.NoOreTunnelAfter {
				m.misses = 0
				if err := m.explore(ctx); err != nil {
					return ReasonStalled, err
				}
			}
		}

		if every := r.Config.ProgressEvery; every > 0 && m.cycles%every == 0 {
			st := r.Session.Status()
			r.Announce("cycle %d: %d ores mined, %d free slots, y=%d",
				m.cycles, st.MinedOres, r.Agent.Inv.EmptySlotCount(), st.CurrentDepth)
		}
	}
}

// upgrade tries the next pickaxe tier when its materials are at hand. A failed iron
// upgrade is retried only once more iron has been collected.
func (m *miner) upgrade(ctx context.Context) {
	r := m.r
	switch tier := m.pickaxeTier(); {
	case tier < tooltier.TierIron:
		held := m.ironHeld()
		if held < r.Config.IronUpgradeRaw || held <= m.ironTried {
			return
		}
		r.Phase("iron_upgrade", map[string]any{"iron": held})
		if err := m.upgradeIron(ctx); err != nil {
			m.ironTried = m.ironHeld()
			r.Log.Warn().Err(err).Msg("opportunistic iron upgrade failed")
		}
	case tier < tooltier.TierDiamond && r.Count("diamond") >= diamondForPickaxe:
		if m.crafter.Ensure(ctx, r, crafting.Need{Kind: tooltier.KindPickaxe, Tier: tooltier.TierDiamond}) {
			r.Announce("upgraded to a diamond pickaxe")
		}
	}
}

// findOre returns the nearest reachable block of the most valuable ore the held
// pickaxe can harvest. Ores are ranked by the configured priority list; filter narrows
// the candidates further. Rejected candidates are remembered for the session.
func (m *miner) findOre(filter func(block string) bool) (agent.Block, bool) {
	r := m.r
	from := r.Position()
	for _, name := range r.Config.PriorityOres {
		if filter != nil && !filter(name) {
			continue
		}
		if !actions.Harvestable(r, name) {
			continue
		}
		ore := name
		b, ok := r.Agent.World.FindNearestBlock(from, func(b agent.Block) bool {
			return b.Name == ore && !m.skip[b.Pos]
		}, r.Config.OreSearchRadius)
		if !ok {
			continue
		}
		if m.reachable(b.Pos) {
			return b, true
		}
		m.skip[b.Pos] = true
		r.Log.Debug().Str("block", ore).Stringer("pos", b.Pos).Msg("ore not reachable")
	}
	return agent.Block{}, false
}

// reachable requires an exposed face and a hazard-free cell.
func (m *miner) reachable(pos agent.Vec3) bool {
	r := m.r
	if !hazard.IsSafeToExcavate(r.Agent.World, r.Catalog, pos, r.Config.SafeFallHeight) {
		return false
	}
	for _, off := range agent.Neighbors6 {
		if actions.Passable(r, pos.Add(off)) {
			return true
		}
	}
	return false
}

// extract mines the vein at b; a vein that yields nothing is not offered again.
func (m *miner) extract(ctx context.Context, b agent.Block) int {
	n := vein.ExtractVein(ctx, m.r, b.Pos, b.Name)
	if n == 0 {
		m.skip[b.Pos] = true
	}
	return n
}

// explore opens new terrain once local ore is exhausted. A spot that has not been a hub
// gets a branch pattern; from the hub itself a strip tunnel moves on.
func (m *miner) explore(ctx context.Context) error {
	r := m.r
	hub, ok := r.Hub()
	if r.Config.BranchCount <= 0 || (ok && hub == r.Position()) {
		r.Phase("strip_tunnel", map[string]any{"length": r.Config.TunnelLength})
		return m.strip(ctx)
	}
	res := tunnel.Branch(ctx, r, tunnel.BranchOptions{
		TargetY: r.Config.TargetDepth,
		Length:  r.Config.BranchLength,
		Count:   r.Config.BranchCount,
	})
	r.Log.Info().Str("reason", string(res.Reason)).Int("branches", res.Branches).Int("steps", res.Steps).
		Int("ores", res.Ores).Msg("branch pattern done")
	if res.Steps > 0 {
		m.stalls = 0
		return nil
	}
	if res.Reason == tunnel.ReasonStopped || res.Reason == tunnel.ReasonInventoryFull {
		return nil
	}
	// Every branch is one direction that made no progress.
	m.stalls += res.Branches
	if m.stalls >= len(agent.Cardinals) {
		return fmt.Errorf("%w after %d attempts", ErrStalled, m.stalls)
	}
	return nil
}

// strip digs one tunnel along the cached direction, turning clockwise when a corridor
// ends early. Four corridors in a row that make no progress stall the session.
func (m *miner) strip(ctx context.Context) error {
	r := m.r
	res := tunnel.Strip(ctx, r, r.Config.TunnelLength)
	r.Log.Info().Str("reason", string(res.Reason)).Int("steps", res.Steps).Int("ores", res.Ores).Msg("strip tunnel done")
	switch res.Reason {
	case tunnel.ReasonBlocked, tunnel.ReasonHazard:
		r.SetDirection(r.Direction().RotateRight())
	}
	if res.Steps > 0 {
		m.stalls = 0
		return nil
	}
	if res.Reason == tunnel.ReasonStopped || res.Reason == tunnel.ReasonInventoryFull {
		return nil
	}
	m.stalls++
	if m.stalls >= len(agent.Cardinals) {
		return fmt.Errorf("%w after %d attempts", ErrStalled, m.stalls)
	}
	return nil
}
