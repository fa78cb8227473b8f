package actions

import (
	"context"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/session"
)

// maxChase bounds how many dropped items one pickup sweep walks to.
const maxChase = 8

// InReach measures from the eye cell, as actuation does.
func InReach(r *session.Run, pos agent.Vec3) bool {
	return r.Position().Up().Distance(pos) <= r.Config.ReachDistance
}

// GoNear walks until the feet are within rng of pos. It returns at once when already
// there; otherwise it waits at most the configured navigation timeout.
func GoNear(ctx context.Context, r *session.Run, pos agent.Vec3, rng float64) bool {
	if r.Position().Distance(pos) <= rng {
		return true
	}
	return r.Agent.Nav.GoTo(ctx, agent.Goal{Pos: pos, Range: rng}, r.Config.NavTimeout())
}

// GoOnto walks onto exactly pos.
func GoOnto(ctx context.Context, r *session.Run, pos agent.Vec3) bool {
	if r.Position() == pos {
		return true
	}
	return r.Agent.Nav.GoTo(ctx, agent.Goal{Pos: pos}, r.Config.NavTimeout())
}

// TotalItems counts every carried item.
func TotalItems(inv agent.Inventory) int {
	return agent.Count(inv, func(string) bool { return true })
}

// CollectDrops waits for passive pickup, then walks to the dropped items still lying
// within radius of around. It returns how many items entered the inventory.
func CollectDrops(ctx context.Context, r *session.Run, around agent.Vec3, radius float64) int {
	before := TotalItems(r.Agent.Inv)
	if err := r.Agent.Clock.Sleep(ctx, r.Config.PickupWait()); err != nil {
		return 0
	}
	chased := 0
	for _, e := range r.Agent.World.EntitiesNear(around, radius) {
		if r.ShouldStop(ctx) || chased >= maxChase {
			break
		}
		if e.Kind != agent.EntityItem {
			continue
		}
		chased++
		if !GoNear(ctx, r, e.Pos, 1) {
			r.Log.Debug().Str("item", e.Item).Stringer("pos", e.Pos).Msg("drop unreachable")
			continue
		}
		if err := r.Agent.Clock.Sleep(ctx, r.Config.PickupWait()); err != nil {
			break
		}
	}
	return TotalItems(r.Agent.Inv) - before
}
