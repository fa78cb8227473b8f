package automine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/actions"
	"voxelminer.ai/internal/mining/crafting"
	"voxelminer.ai/internal/mining/descent"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/mining/smelting"
	"voxelminer.ai/internal/mining/tooltier"
	"voxelminer.ai/internal/mining/tunnel"
)

const (
	ironIngot          = "iron_ingot"
	rawIron            = "raw_iron"
	ironForPickaxe     = 3
	diamondForPickaxe  = 3
	furnaceItem        = "furnace"
	furnaceMaterial    = "#stone_crafting_materials"
	furnaceCobblestone = 8
	toolMaterial       = "#stone_tool_materials"
	// cobbleStrips bounds the extra corridors dug for furnace material.
	cobbleStrips = 3
)

var errShort = errors.New("not enough materials")

// miner holds the per-session state of the phase sequence.
type miner struct {
	r        *session.Run
	crafter  *crafting.Manager
	smelter  *smelting.Orchestrator
	deadline time.Time

	cycles int
	misses int
	stalls int
	// ironTried is the iron count at the last failed iron upgrade; another attempt waits
	// until more iron is held.
	ironTried int
	skip      map[agent.Vec3]bool
}

func (m *miner) pickaxeTier() tooltier.Tier {
	return tooltier.HeldTier(m.r.Agent.Inv.Items(), tooltier.KindPickaxe)
}

// session runs the phases in order and returns the termination reason. A nil error
// means success.
func (m *miner) session(ctx context.Context) (string, error) {
	r := m.r
	if reason, done, err := m.checkpoint(ctx); done {
		return reason, err
	}

	r.Phase("baseline_pickaxe", nil)
	if !m.crafter.Ensure(ctx, r, crafting.Need{Kind: tooltier.KindPickaxe, Tier: tooltier.TierWooden}) {
		if reason, done, err := m.checkpoint(ctx); done {
			return reason, err
		}
		return ReasonNoPickaxe, fmt.Errorf("%w: %w", ErrNoPickaxe, m.crafter.LastError())
	}
	if reason, done, err := m.checkpoint(ctx); done {
		return reason, err
	}

	r.Phase("stone_upgrade", nil)
	if err := m.upgradeStone(ctx); err != nil {
		if reason, done, err := m.checkpoint(ctx); done {
			return reason, err
		}
		return ReasonNoStonePickaxe, fmt.Errorf("%w: %w", ErrNoStonePickaxe, err)
	}
	if reason, done, err := m.checkpoint(ctx); done {
		return reason, err
	}

	if m.pickaxeTier() < tooltier.TierIron {
		r.Phase("gather_iron", map[string]any{"iron_depth": r.Config.IronDepth})
		if err := m.gatherIron(ctx); err != nil {
			r.Announce("iron gathering fell short, skipping the iron upgrade: %v", err)
		} else {
			if reason, done, err := m.checkpoint(ctx); done {
				return reason, err
			}
			r.Phase("iron_upgrade", nil)
			if err := m.upgradeIron(ctx); err != nil {
				m.ironTried = m.ironHeld()
				r.Announce("iron upgrade failed, mining with %s: %v", m.pickaxeTier(), err)
			}
		}
		if reason, done, err := m.checkpoint(ctx); done {
			return reason, err
		}
	}

	return m.mainLoop(ctx)
}

// checkpoint maps the session-ending conditions to a reason. Inventory full is the
// only successful ending.
func (m *miner) checkpoint(ctx context.Context) (reason string, done bool, err error) {
	r := m.r
	if !m.deadline.IsZero() && !r.Now().Before(m.deadline) {
		r.Stop(ReasonBudget)
	}
	if reason, ok := r.StopRequested(); ok {
		if reason == ReasonBudget {
			return ReasonBudget, true, ErrBudget
		}
		return reason, true, fmt.Errorf("%w: %s", ErrStopped, reason)
	}
	if err := ctx.Err(); err != nil {
		return ReasonCancelled, true, fmt.Errorf("%w: %w", ErrStopped, err)
	}
	if r.InventoryFull() {
		return ReasonInventoryFull, true, nil
	}
	return "", false, nil
}

// upgradeStone digs a staircase until enough stone-tool material is held, then crafts
// the stone pickaxe. Any table placed for the craft is reclaimed by the crafter.
func (m *miner) upgradeStone(ctx context.Context) error {
	r := m.r
	need := r.Config.StoneUpgradeCobblestone
	if m.pickaxeTier() < tooltier.TierStone && r.Count(toolMaterial) < need {
		r.Announce("digging for %d cobblestone", need-r.Count(toolMaterial))
		res := descent.New(r, descent.Options{
			TargetY:        r.Config.MaxDepth,
			Material:       toolMaterial,
			MaterialTarget: need,
		}).Run(ctx)
		r.Log.Info().Str("reason", string(res.Reason)).Int("steps", res.Steps).Msg("cobblestone staircase done")
	}
	if !m.crafter.Ensure(ctx, r, crafting.Need{Kind: tooltier.KindPickaxe, Tier: tooltier.TierStone}) {
		return m.crafter.LastError()
	}
	return nil
}

func (m *miner) ironHeld() int {
	return m.r.Count(rawIron) + m.r.Count(ironIngot)
}

// gatherIron descends to the iron depth collecting exposed ore on the way, then mines
// exposed iron veins or digs strip tunnels until enough iron is held.
func (m *miner) gatherIron(ctx context.Context) error {
	r := m.r
	want := r.Config.IronUpgradeRaw
	if m.ironHeld() >= want {
		return nil
	}
	if r.Position().Y > r.Config.IronDepth {
		res := descent.New(r, descent.Options{TargetY: r.Config.IronDepth, CollectOres: true}).Run(ctx)
		r.Log.Info().Str("reason", string(res.Reason)).Int("ores", res.Ores).Msg("iron descent done")
	}
	isIron := func(block string) bool {
		family, _ := tooltier.OreFamily(block)
		return family == "iron"
	}
	for i := 0; i < r.Config.IronSearchTunnels && m.ironHeld() < want; i++ {
		if r.ShouldStop(ctx) || r.InventoryFull() {
			break
		}
		if b, ok := m.findOre(isIron); ok {
			m.extract(ctx, b)
			continue
		}
		r.Phase("iron_tunnel", map[string]any{"attempt": i + 1})
		if err := m.strip(ctx); err != nil {
			r.Log.Warn().Err(err).Msg("iron search stalled")
			break
		}
	}
	if have := m.ironHeld(); have < want {
		return fmt.Errorf("have %d of %d iron: %w", have, want, errShort)
	}
	return nil
}

// upgradeIron smelts raw iron with whatever fuel is held (planning charcoal or kelp fuel
// when short) and crafts the iron pickaxe. Sticks are crafted on demand by the crafter.
func (m *miner) upgradeIron(ctx context.Context) error {
	r := m.r
	if missing := ironForPickaxe - r.Count(ironIngot); missing > 0 {
		if raw := r.Count(rawIron); raw < missing {
			return fmt.Errorf("have %d raw iron, need %d: %w", raw, missing, errShort)
		}
		if err := m.ensureFurnaceMaterial(ctx); err != nil {
			return err
		}
		jobs := []*smelting.Job{{Kind: smelting.KindSmelt, Input: rawIron, Amount: missing}}
		plan := append(smelting.PlanFuel(r, jobs), jobs...)
		if _, err := m.smelter.Smelt(ctx, r, plan...); err != nil {
			return err
		}
		if have := r.Count(ironIngot); have < ironForPickaxe {
			return fmt.Errorf("have %d iron ingots: %w", have, errShort)
		}
	}
	if !m.crafter.Ensure(ctx, r, crafting.Need{Kind: tooltier.KindPickaxe, Tier: tooltier.TierIron}) {
		return m.crafter.LastError()
	}
	return nil
}

// ensureFurnaceMaterial digs short corridors until a furnace can be built, unless one is
// held or already stands nearby.
func (m *miner) ensureFurnaceMaterial(ctx context.Context) error {
	r := m.r
	if agent.CountItem(r.Agent.Inv, furnaceItem) > 0 {
		return nil
	}
	if _, ok := actions.FindStation(ctx, r, furnaceItem); ok {
		return nil
	}
	for i := 0; i < cobbleStrips; i++ {
		short := furnaceCobblestone - r.Count(furnaceMaterial)
		if short <= 0 {
			return nil
		}
		if r.ShouldStop(ctx) {
			break
		}
		r.Announce("digging for %d cobblestone for a furnace", short)
		// Each corridor step yields about two blocks.
		length := (short+1)/2 + 1
		if res := tunnel.Strip(ctx, r, length); res.Steps == 0 {
			r.SetDirection(r.Direction().RotateRight())
		}
	}
	if have := r.Count(furnaceMaterial); have < furnaceCobblestone {
		return fmt.Errorf("need %d cobblestone for a furnace, have %d: %w", furnaceCobblestone, have, errShort)
	}
	return nil
}
