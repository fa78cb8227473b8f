// Package tunnel digs two-high corridors: single strip tunnels and branch patterns
// radiating from a hub.
package tunnel

import (
	"context"
	"fmt"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/actions"
	"voxelminer.ai/internal/mining/descent"
	"voxelminer.ai/internal/mining/hazard"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/mining/vein"
)

// scanDistance is how far ahead each step looks for lava and fire.
const scanDistance = 2

// Reason tells why a corridor ended.
type Reason string

const (
	ReasonLength        Reason = "length"
	ReasonStopped       Reason = "stopped"
	ReasonInventoryFull Reason = "inventory_full"
	ReasonHazard        Reason = "hazard"
	ReasonBlocked       Reason = "blocked"
)

// Result summarizes a corridor or branch pattern.
type Result struct {
	Reason Reason
	Steps  int
	Ores   int
}

// Strip digs a corridor of length steps along the run's direction, mining exposed
// harvestable veins on the way. A hazard ahead makes it strafe one lane right (or left)
// and carry on.
func Strip(ctx context.Context, r *session.Run, length int) Result {
	prev := r.Session.Mode()
	if prev != session.ModeBranching {
		r.SetMode(session.ModeTunneling)
		defer r.SetMode(prev)
	}
	log := r.Log.With().Str("component", "tunnel").Logger()
	dir := r.Direction()
	var res Result
	for res.Steps < length {
		switch {
		case r.ShouldStop(ctx):
			res.Reason = ReasonStopped
			return res
		case r.InventoryFull():
			res.Reason = ReasonInventoryFull
			return res
		}
		feet := r.Position()
		if h, found := hazard.ScanAhead(r.Agent.World, r.Catalog, feet, dir, scanDistance); found {
			log.Warn().Str("hazard", string(h.Kind)).Str("block", h.Block).Stringer("pos", h.Pos).Msg("hazard ahead")
			if !sidestep(ctx, r, dir) {
				res.Reason = ReasonHazard
				return res
			}
			continue
		}
		if err := advance(ctx, r, feet.Add(dir)); err != nil {
			log.Warn().Err(err).Int("steps", res.Steps).Msg("corridor blocked")
			res.Reason = ReasonBlocked
			return res
		}
		res.Steps++
		res.Ores += mineWalls(ctx, r)
	}
	res.Reason = ReasonLength
	return res
}

// advance clears the feet and head cells at next and walks into it.
func advance(ctx context.Context, r *session.Run, next agent.Vec3) error {
	for _, cell := range []agent.Vec3{next.Up(), next} {
		if err := actions.Clear(ctx, r, cell); err != nil {
			return err
		}
	}
	if !actions.Solid(r, next.Down()) {
		return fmt.Errorf("no floor at %s: %w", next, agent.ErrBlocked)
	}
	if !actions.GoOnto(ctx, r, next) {
		return fmt.Errorf("walk onto %s: %w", next, actions.ErrUnreachable)
	}
	return r.Settle(ctx)
}

// sidestep strafes into the first hazard-free neighbouring lane.
func sidestep(ctx context.Context, r *session.Run, dir agent.Vec3) bool {
	feet := r.Position()
	for _, side := range []agent.Vec3{dir.RotateRight(), dir.RotateLeft()} {
		lane := feet.Add(side)
		if _, found := hazard.ScanAhead(r.Agent.World, r.Catalog, lane, dir, scanDistance); found {
			continue
		}
		if _, found := hazard.ScanAhead(r.Agent.World, r.Catalog, feet, side, 1); found {
			continue
		}
		if err := advance(ctx, r, lane); err != nil {
			r.Log.Debug().Err(err).Stringer("lane", lane).Msg("sidestep failed")
			continue
		}
		return true
	}
	return false
}

// mineWalls extracts harvestable veins touching the corridor and steps back in.
func mineWalls(ctx context.Context, r *session.Run) int {
	here := r.Position()
	mined := 0
	for _, origin := range []agent.Vec3{here, here.Up()} {
		for _, off := range agent.Neighbors6 {
			if r.ShouldStop(ctx) {
				return mined
			}
			pos := origin.Add(off)
			b, ok := r.Agent.World.BlockAt(pos)
			if !ok || !actions.Harvestable(r, b.Name) {
				continue
			}
			mined += vein.ExtractVein(ctx, r, pos, b.Name)
		}
	}
	if mined > 0 && r.Position() != here && !actions.GoOnto(ctx, r, here) {
		r.Log.Warn().Stringer("pos", here).Msg("could not return to corridor")
	}
	return mined
}

// BranchOptions shapes a branch pattern.
type BranchOptions struct {
	TargetY int
	Length  int
	Count   int
}

// BranchResult adds the number of branches dug.
type BranchResult struct {
	Result
	Branches int
	Hub      agent.Vec3
}

// Branch descends to TargetY, records the spot as hub and digs up to Count corridors in
// clockwise cardinal order from the current heading, returning to the hub after each.
func Branch(ctx context.Context, r *session.Run, opts BranchOptions) BranchResult {
	var res BranchResult
	if r.Position().Y > opts.TargetY {
		d := descent.New(r, descent.Options{TargetY: opts.TargetY})
		if dr := d.Run(ctx); dr.Reason != descent.ReasonTargetDepth {
			res.Reason = Reason(dr.Reason)
			return res
		}
	}
	prev := r.Session.Mode()
	r.SetMode(session.ModeBranchPending)
	defer r.SetMode(prev)

	res.Hub = r.Position()
	r.SetHub(res.Hub)
	r.Phase("branching", map[string]any{"hub": res.Hub.String(), "count": opts.Count})
	dir := r.Direction()
	for i := 0; i < opts.Count && i < len(agent.Cardinals); i++ {
		if r.ShouldStop(ctx) {
			res.Reason = ReasonStopped
			return res
		}
		r.SetDirection(dir)
		r.SetMode(session.ModeBranching)
		s := Strip(ctx, r, opts.Length)
		res.Steps += s.Steps
		res.Ores += s.Ores
		res.Branches++
		r.SetMode(session.ModeBranchPending)
		if !actions.GoOnto(ctx, r, res.Hub) {
			r.Log.Warn().Stringer("hub", res.Hub).Msg("cannot return to hub")
			res.Reason = ReasonBlocked
			return res
		}
		switch s.Reason {
		case ReasonStopped, ReasonInventoryFull:
			res.Reason = s.Reason
			return res
		}
		dir = dir.RotateRight()
	}
	res.Reason = ReasonLength
	return res
}
