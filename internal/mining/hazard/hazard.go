// Package hazard vetoes excavation targets next to harmful fluids or above deep voids,
// and scans the corridor ahead for lava and open flame.
package hazard

import (
	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
)

// Kind classifies a detected hazard.
type Kind string

const (
	KindFluid Kind = "fluid"
	KindFlame Kind = "flame"
)

// Hazard is a dangerous cell found by ScanAhead.
type Hazard struct {
	Kind  Kind
	Pos   agent.Vec3
	Block string
}

// MaxSafeFall bounds the downward probe; a larger safe fall height is rejected by config
// validation.
const MaxSafeFall = 64

// IsSafeToExcavate reports whether digging pos exposes neither a harmful fluid nor a
// drop deeper than safeFall cells.
func IsSafeToExcavate(w agent.World, cat *catalogs.Catalogs, pos agent.Vec3, safeFall int) bool {
	for _, off := range agent.Neighbors6 {
		b, ok := w.BlockAt(pos.Add(off))
		if !ok {
			continue
		}
		if cat.IsHarmfulFluid(b.Name) {
			return false
		}
	}
	depth, harmful := fallDepth(w, cat, pos, safeFall)
	return !harmful && depth <= safeFall
}

// fallDepth counts non-solid cells straight below pos. harmful reports a harmful fluid
// in the shaft, whatever its depth. Unloaded cells end the probe.
func fallDepth(w agent.World, cat *catalogs.Catalogs, pos agent.Vec3, safeFall int) (depth int, harmful bool) {
	limit := min(safeFall+1, MaxSafeFall+1)
	for cur := pos.Down(); depth < limit; cur = cur.Down() {
		b, ok := w.BlockAt(cur)
		if !ok || cat.IsSolid(b.Name) {
			return depth, false
		}
		if cat.IsHarmfulFluid(b.Name) {
			return depth, true
		}
		depth++
	}
	return depth, false
}

// ScanAhead inspects the floor, feet and head cells of the next distance steps along dir.
func ScanAhead(w agent.World, cat *catalogs.Catalogs, origin, dir agent.Vec3, distance int) (Hazard, bool) {
	for step := 1; step <= distance; step++ {
		base := origin.Add(agent.Vec3{X: dir.X * step, Z: dir.Z * step})
		for _, cell := range []agent.Vec3{base.Down(), base, base.Up()} {
			b, ok := w.BlockAt(cell)
			if !ok || !cat.IsHazard(b.Name) {
				continue
			}
			kind := KindFlame
			if cat.IsFluid(b.Name) {
				kind = KindFluid
			}
			return Hazard{Kind: kind, Pos: cell, Block: b.Name}, true
		}
	}
	return Hazard{}, false
}
