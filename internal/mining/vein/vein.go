// Package vein extracts connected ore deposits.
package vein

import (
	"context"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/actions"
	"voxelminer.ai/internal/mining/hazard"
	"voxelminer.ai/internal/mining/session"
)

const (
	pickupRadius = 3
	sweepRadius  = 6
)

// Discover walks face-connected blocks named like the seed, breadth first, and returns at
// most limit positions with the seed first. Every position appears once.
func Discover(w agent.World, seed agent.Vec3, block string, limit int) []agent.Vec3 {
	if limit <= 0 {
		return nil
	}
	if b, ok := w.BlockAt(seed); !ok || b.Name != block {
		return nil
	}
	visited := map[agent.Vec3]bool{seed: true}
	out := []agent.Vec3{seed}
	for i := 0; i < len(out) && len(out) < limit; i++ {
		for _, off := range agent.Neighbors6 {
			n := out[i].Add(off)
			if visited[n] {
				continue
			}
			visited[n] = true
			if b, ok := w.BlockAt(n); ok && b.Name == block {
				out = append(out, n)
				if len(out) == limit {
					break
				}
			}
		}
	}
	return out
}

// ExtractVein mines the vein containing seed, up to the configured cap, and returns how
// many blocks were dug. Unsafe or failing blocks are skipped. The stop flag is checked
// before every block.
func ExtractVein(ctx context.Context, r *session.Run, seed agent.Vec3, block string) int {
	positions := Discover(r.Agent.World, seed, block, r.Config.VeinMaxBlocks)
	if len(positions) == 0 {
		return 0
	}
	prev := r.Session.Mode()
	r.SetMode(session.ModeVeinMining)
	defer r.SetMode(prev)

	log := r.Log.With().Str("component", "vein").Str("block", block).Logger()
	log.Debug().Int("size", len(positions)).Stringer("seed", seed).Msg("vein found")

	mined := 0
	for _, pos := range positions {
		if r.ShouldStop(ctx) {
			break
		}
		if b, ok := r.Agent.World.BlockAt(pos); !ok || b.Name != block {
			continue
		}
		if !hazard.IsSafeToExcavate(r.Agent.World, r.Catalog, pos, r.Config.SafeFallHeight) {
			log.Warn().Stringer("pos", pos).Msg("skipping unsafe vein block")
			continue
		}
		if _, err := actions.Dig(ctx, r, pos); err != nil {
			log.Warn().Err(err).Stringer("pos", pos).Msg("vein block skipped")
			continue
		}
		mined++
		if !actions.GoOnto(ctx, r, pos) {
			log.Debug().Stringer("pos", pos).Msg("cannot stand in dug cell")
		}
		actions.CollectDrops(ctx, r, pos, pickupRadius)
	}
	if mined > 0 && !r.ShouldStop(ctx) {
		actions.CollectDrops(ctx, r, seed, sweepRadius)
	}
	log.Info().Int("mined", mined).Int("size", len(positions)).Msg("vein extracted")
	return mined
}
