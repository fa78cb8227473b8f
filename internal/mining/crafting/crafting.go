// Package crafting makes sure the agent holds a tool of a required tier, bootstrapping
// wood, planks, sticks and a crafting table on the way and falling back to lower tiers
// when materials run short.
package crafting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/mining/actions"
	"voxelminer.ai/internal/mining/chain"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/mining/tooltier"
)

const (
	tableItem       = "crafting_table"
	tablePlanks     = 4
	sticksPerTool   = 2
	sticksPerCraft  = 4
	planksPerStick  = 2
	planksPerLog    = 4
	woodPickupRange = 3
)

var (
	ErrBusy          = errors.New("crafting already in progress")
	ErrNoMaterials   = errors.New("insufficient materials")
	ErrNoPlacement   = errors.New("no placement position")
	ErrCraftFailed   = errors.New("craft failed")
	ErrNotCraftable  = errors.New("no recipe for tool")
	ErrBelowFloor    = errors.New("best craftable tier below floor")
	ErrWoodExhausted = errors.New("no wood within reach")
)

// Need asks for a tool family at a target tier. When materials fall short the manager
// walks down the tiers to Floor; a zero Floor means Tier itself.
type Need struct {
	Kind  tooltier.Kind
	Tier  tooltier.Tier
	Floor tooltier.Tier
}

func (n Need) String() string {
	return fmt.Sprintf("%s %s", n.Tier, n.Kind)
}

// Manager runs one crafting progression at a time. Calls made while one is in flight
// (for example from a dig inside the placement chain) fail fast.
type Manager struct {
	busy    bool
	lastErr error
}

func New() *Manager { return &Manager{} }

// LastError explains the most recent failed Ensure.
func (m *Manager) LastError() error { return m.lastErr }

// EnsureToolFor satisfies session.ToolProvider: exactly the required tier or better.
func (m *Manager) EnsureToolFor(ctx context.Context, r *session.Run, req tooltier.Requirement) bool {
	return m.Ensure(ctx, r, Need{Kind: req.Kind, Tier: req.Tier, Floor: req.Tier})
}

// Ensure equips a tool satisfying need, crafting one when none is held.
func (m *Manager) Ensure(ctx context.Context, r *session.Run, need Need) bool {
	if m.busy {
		m.lastErr = ErrBusy
		return false
	}
	m.busy = true
	defer func() { m.busy = false }()

	err := m.ensure(ctx, r, need)
	m.lastErr = err
	if err != nil {
		r.Log.Warn().Err(err).Stringer("need", need).Msg("tool progression failed")
		return false
	}
	return true
}

func (m *Manager) ensure(ctx context.Context, r *session.Run, need Need) error {
	floor := need.Floor
	if floor == tooltier.TierNone || floor > need.Tier {
		floor = need.Tier
	}
	if equipBest(ctx, r, need.Kind, need.Tier) {
		return nil
	}

	held := tooltier.HeldTier(r.Agent.Inv.Items(), need.Kind)
	var candidates []chain.Candidate[tooltier.Tier]
	for t := need.Tier; t >= floor && t > held && t > tooltier.TierNone; t = t.Lower() {
		tier := t
		candidates = append(candidates, chain.Candidate[tooltier.Tier]{
			Name: tier.String(),
			Try: func(context.Context) (tooltier.Tier, bool) {
				return tier, m.affordable(r, need.Kind, tier)
			},
		})
		if t == tooltier.TierWooden {
			break
		}
	}
	pick := chain.First(ctx, candidates)
	if !pick.OK {
		if held >= floor && held > tooltier.TierNone {
			return nil
		}
		return fmt.Errorf("%s (tried %s): %w", need, strings.Join(pick.Tried, ","), ErrNoMaterials)
	}
	tier := pick.Value
	item := tooltier.ItemName(need.Kind, tier)
	recipe, ok := r.Catalog.Recipe(item)
	if !ok {
		return fmt.Errorf("%s: %w", item, ErrNotCraftable)
	}

	planks := 0
	if _, ok := actions.FindStation(ctx, r, tableItem); !ok && agent.CountItem(r.Agent.Inv, tableItem) == 0 {
		planks += tablePlanks
	}
	if r.Count("stick") < sticksPerTool {
		planks += planksPerStick
	}
	for _, in := range recipe.Inputs {
		if in.Item == "#planks" {
			planks += in.Count
		}
	}
	if err := m.ensurePlanks(ctx, r, planks); err != nil {
		return fmt.Errorf("%s: %w", item, err)
	}
	if err := m.EnsureSticks(ctx, r, sticksPerTool); err != nil {
		return fmt.Errorf("%s: %w", item, err)
	}

	if err := m.CraftAtTable(ctx, r, item, 1); err != nil {
		return err
	}
	if agent.CountItem(r.Agent.Inv, item) == 0 {
		return fmt.Errorf("%s missing after craft: %w", item, ErrCraftFailed)
	}
	if err := r.Agent.Act.Equip(ctx, item, agent.SlotHand); err != nil {
		return fmt.Errorf("equip %s: %w", item, err)
	}
	r.Metrics.ToolCrafted(ctx, item)
	r.Announce("crafted %s", item)
	if tier < floor {
		return fmt.Errorf("%s: %w", item, ErrBelowFloor)
	}
	return nil
}

// equipBest puts the best held tool of kind meeting tier in hand.
func equipBest(ctx context.Context, r *session.Run, kind tooltier.Kind, tier tooltier.Tier) bool {
	best, _, ok := tooltier.BestHeldTool(r.Agent.Inv.Items(), kind, tier)
	if !ok {
		return false
	}
	if held, ok := r.Agent.Inv.HeldItem(); ok && held.Item == best.Item {
		return true
	}
	return r.Agent.Act.Equip(ctx, best.Item, agent.SlotHand) == nil
}

// affordable reports whether the head material for a tier is at hand. Wooden heads can
// always be attempted since wood is gathered on demand.
func (m *Manager) affordable(r *session.Run, kind tooltier.Kind, tier tooltier.Tier) bool {
	recipe, ok := r.Catalog.Recipe(tooltier.ItemName(kind, tier))
	if !ok {
		return false
	}
	if tier == tooltier.TierWooden {
		return true
	}
	for _, in := range recipe.Inputs {
		if in.Item == "stick" {
			continue
		}
		if r.Count(in.Item) < in.Count {
			return false
		}
	}
	return true
}

// CraftAtTable crafts recipeID at a crafting table, placing one when none is near and
// reclaiming it afterwards. The craft itself is attempted once.
func (m *Manager) CraftAtTable(ctx context.Context, r *session.Run, recipeID string, amount int) error {
	table, placed, err := m.EnsureStation(ctx, r)
	if err != nil {
		return fmt.Errorf("%s: %w", recipeID, err)
	}
	if placed {
		defer func() {
			if !actions.Reclaim(ctx, r, table, tableItem) {
				r.Log.Debug().Stringer("pos", table).Msg("crafting table left in place")
			}
		}()
	}
	if err := r.Agent.Act.Craft(ctx, recipeID, amount, &table); err != nil {
		r.Announce("crafting %s failed: %v", recipeID, err)
		return fmt.Errorf("%s: %w: %w", recipeID, ErrCraftFailed, err)
	}
	return r.Settle(ctx)
}

// EnsureStation finds a crafting table within reach or crafts and places one. placed
// reports a table put down by this call.
func (m *Manager) EnsureStation(ctx context.Context, r *session.Run) (pos agent.Vec3, placed bool, err error) {
	if pos, ok := actions.FindStation(ctx, r, tableItem); ok {
		return pos, false, nil
	}
	if agent.CountItem(r.Agent.Inv, tableItem) == 0 {
		if err := m.ensurePlanks(ctx, r, tablePlanks); err != nil {
			return agent.Vec3{}, false, fmt.Errorf("crafting table: %w", err)
		}
		if err := r.Agent.Act.Craft(ctx, tableItem, 1, nil); err != nil {
			return agent.Vec3{}, false, fmt.Errorf("crafting table: %w: %w", ErrCraftFailed, err)
		}
	}
	pos, ok := actions.PlaceStation(ctx, r, actions.Placement{Item: tableItem})
	if !ok {
		return agent.Vec3{}, false, fmt.Errorf("crafting table: %w", ErrNoPlacement)
	}
	return pos, true, nil
}

// EnsureSticks crafts sticks from planks (and planks from logs) until n are held.
func (m *Manager) EnsureSticks(ctx context.Context, r *session.Run, n int) error {
	have := r.Count("stick")
	if have >= n {
		return nil
	}
	batches := (n - have + sticksPerCraft - 1) / sticksPerCraft
	if err := m.ensurePlanks(ctx, r, batches*planksPerStick); err != nil {
		return fmt.Errorf("sticks: %w", err)
	}
	if err := r.Agent.Act.Craft(ctx, "stick", batches, nil); err != nil {
		return fmt.Errorf("sticks: %w: %w", ErrCraftFailed, err)
	}
	if r.Count("stick") < n {
		return fmt.Errorf("sticks: %w", ErrCraftFailed)
	}
	return nil
}

// ensurePlanks converts held logs, gathering more wood when needed, until n planks are held.
func (m *Manager) ensurePlanks(ctx context.Context, r *session.Run, n int) error {
	have := r.Count("#planks")
	if have >= n {
		return nil
	}
	logsNeeded := (n - have + planksPerLog - 1) / planksPerLog
	if r.Count("#logs") < logsNeeded {
		if err := m.gatherWood(ctx, r, logsNeeded); err != nil {
			return err
		}
	}
	for _, st := range r.Agent.Inv.Items() {
		if logsNeeded <= 0 {
			break
		}
		if !r.Catalog.HasTag(st.Item, "logs") {
			continue
		}
		recipe, ok := r.Catalog.PlanksFor(st.Item)
		if !ok {
			continue
		}
		amount := min(st.Count, logsNeeded)
		if err := r.Agent.Act.Craft(ctx, recipe.RecipeID, amount, nil); err != nil {
			return fmt.Errorf("planks: %w: %w", ErrCraftFailed, err)
		}
		logsNeeded -= amount
	}
	if r.Count("#planks") < n {
		return fmt.Errorf("need %d planks: %w", n, ErrNoMaterials)
	}
	return nil
}

// gatherWood digs log blocks nearby until want logs are held, giving up after the
// configured number of attempts.
func (m *Manager) gatherWood(ctx context.Context, r *session.Run, want int) error {
	isLog := func(b agent.Block) bool { return r.Catalog.HasTag(b.Name, "logs") }
	for attempt := 0; attempt < r.Config.WoodGatherAttempts; attempt++ {
		if r.Count("#logs") >= want {
			return nil
		}
		if r.ShouldStop(ctx) {
			if err := ctx.Err(); err != nil {
				return err
			}
			reason, _ := r.StopRequested()
			return fmt.Errorf("wood gathering stopped (%s): %w", reason, context.Canceled)
		}
		b, ok := r.Agent.World.FindNearestBlock(r.Position(), isLog, r.Config.WoodSearchRadius)
		if !ok {
			break
		}
		if _, err := actions.Dig(ctx, r, b.Pos); err != nil {
			r.Log.Debug().Err(err).Stringer("pos", b.Pos).Msg("log dig failed")
			continue
		}
		actions.CollectDrops(ctx, r, b.Pos, woodPickupRange)
	}
	if r.Count("#logs") >= want {
		return nil
	}
	return fmt.Errorf("need %d logs, have %d: %w", want, r.Count("#logs"), ErrWoodExhausted)
}

// Covers reports whether the inventory holds the inputs for one run of recipe.
func Covers(r *session.Run, recipe catalogs.RecipeDef) bool {
	for _, in := range recipe.Inputs {
		if r.Count(in.Item) < in.Count {
			return false
		}
	}
	return true
}
