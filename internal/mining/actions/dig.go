// Package actions holds the excavation primitives every mining strategy shares: tool
// selection, hazard-checked digging with a fixed retry, movement, drop pickup and
// verified station placement.
package actions

import (
	"context"
	"errors"
	"fmt"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/chain"
	"voxelminer.ai/internal/mining/hazard"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/mining/tooltier"
)

var (
	ErrUnsafe      = errors.New("unsafe to excavate")
	ErrNoTool      = errors.New("no suitable tool")
	ErrUnreachable = errors.New("target out of reach")
	ErrUnbreakable = errors.New("block cannot be broken")
)

// DigPolicy is the fixed-attempt retry applied to a single dig.
func DigPolicy(r *session.Run) chain.Policy {
	return chain.Policy{
		Attempts:  r.Config.DigAttempts,
		Delay:     r.Config.DigRetry(),
		Retryable: chain.AbortedOnly,
	}
}

// EquipFor puts the best held tool for block in hand. When the block needs a tier the
// agent does not carry, the run's ToolProvider is asked to make one.
func EquipFor(ctx context.Context, r *session.Run, block string) error {
	req := tooltier.RequirementFor(block)
	if req.Kind == tooltier.KindNone {
		return nil
	}
	best, _, ok := tooltier.BestHeldTool(r.Agent.Inv.Items(), req.Kind, req.Tier)
	if !ok {
		if req.Tier == tooltier.TierNone {
			return nil
		}
		if r.Tools == nil || !r.Tools.EnsureToolFor(ctx, r, req) {
			return fmt.Errorf("%s needs a %s %s: %w", block, req.Tier, req.Kind, ErrNoTool)
		}
		best, _, ok = tooltier.BestHeldTool(r.Agent.Inv.Items(), req.Kind, req.Tier)
		if !ok {
			return fmt.Errorf("%s needs a %s %s: %w", block, req.Tier, req.Kind, ErrNoTool)
		}
	}
	if held, ok := r.Agent.Inv.HeldItem(); ok && held.Item == best.Item {
		return nil
	}
	if err := r.Agent.Act.Equip(ctx, best.Item, agent.SlotHand); err != nil {
		return fmt.Errorf("equip %s: %w", best.Item, err)
	}
	return nil
}

// Dig breaks the block at pos and returns its name. It vetoes hazardous targets, walks
// into reach, selects the tool and retries aborted digs a fixed number of times. A dig
// counts only once the world no longer shows the block.
func Dig(ctx context.Context, r *session.Run, pos agent.Vec3) (string, error) {
	w, cat := r.Agent.World, r.Catalog
	b, ok := w.BlockAt(pos)
	if !ok {
		return "", fmt.Errorf("dig %s: unloaded: %w", pos, agent.ErrInvalidTarget)
	}
	if cat.IsAir(b.Name) || cat.IsFluid(b.Name) {
		return b.Name, fmt.Errorf("dig %s: nothing to dig (%s): %w", pos, b.Name, agent.ErrInvalidTarget)
	}
	if !cat.IsBreakable(b.Name) {
		return b.Name, fmt.Errorf("dig %s (%s): %w", pos, b.Name, ErrUnbreakable)
	}
	if !hazard.IsSafeToExcavate(w, cat, pos, r.Config.SafeFallHeight) {
		return b.Name, fmt.Errorf("dig %s (%s): %w", pos, b.Name, ErrUnsafe)
	}
	if !InReach(r, pos) && (!GoNear(ctx, r, pos, r.Config.ReachDistance-1) || !InReach(r, pos)) {
		return b.Name, fmt.Errorf("dig %s: %w", pos, ErrUnreachable)
	}
	if err := EquipFor(ctx, r, b.Name); err != nil {
		return b.Name, err
	}

	verify := !cat.HasGravity(b.Name)
	out := chain.Retry(ctx, r.Agent.Clock, DigPolicy(r), func(ctx context.Context, attempt int) error {
		if err := r.Agent.Act.Dig(ctx, pos); err != nil {
			r.Log.Debug().Err(err).Int("attempt", attempt).Str("block", b.Name).Stringer("pos", pos).Msg("dig failed")
			return err
		}
		if verify {
			if cur, ok := w.BlockAt(pos); ok && cur.Name == b.Name {
				return fmt.Errorf("dig %s: block still present: %w", pos, agent.ErrAborted)
			}
		}
		return nil
	})
	if !out.OK {
		r.Metrics.DigFailed(ctx, b.Name)
		return b.Name, fmt.Errorf("dig %s at %s after %d attempts: %w", b.Name, pos, out.Attempts, out.Err)
	}
	r.RecordBlock(ctx, b.Name, tooltier.IsOre(b.Name))
	if err := r.Settle(ctx); err != nil {
		return b.Name, err
	}
	return b.Name, nil
}

// Clear makes pos passable. Air and harmless non-solid cells need no work.
func Clear(ctx context.Context, r *session.Run, pos agent.Vec3) error {
	b, ok := r.Agent.World.BlockAt(pos)
	if !ok {
		return fmt.Errorf("clear %s: unloaded: %w", pos, agent.ErrInvalidTarget)
	}
	if r.Catalog.IsHazard(b.Name) {
		return fmt.Errorf("clear %s (%s): %w", pos, b.Name, ErrUnsafe)
	}
	if r.Catalog.Passable(b.Name) {
		return nil
	}
	_, err := Dig(ctx, r, pos)
	return err
}

// Passable reports whether the body can occupy pos.
func Passable(r *session.Run, pos agent.Vec3) bool {
	b, ok := r.Agent.World.BlockAt(pos)
	return ok && r.Catalog.Passable(b.Name)
}

// Solid reports a loaded solid cell.
func Solid(r *session.Run, pos agent.Vec3) bool {
	b, ok := r.Agent.World.BlockAt(pos)
	return ok && r.Catalog.IsSolid(b.Name)
}

// Harvestable reports an allowed ore the held tools can mine for a drop.
func Harvestable(r *session.Run, block string) bool {
	if !tooltier.IsOre(block) || !r.Config.OreAllowed(block) {
		return false
	}
	req := tooltier.RequirementFor(block)
	return tooltier.HeldTier(r.Agent.Inv.Items(), req.Kind) >= req.Tier
}
