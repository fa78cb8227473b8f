package simworld

import (
	"context"
	"fmt"
	"time"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/mining/tooltier"
)

const (
	actionDuration = 50 * time.Millisecond
	craftDuration  = 250 * time.Millisecond
)

// Dig breaks the block at p. Blocks that need a tool tier only drop their item when the
// held tool meets it.
func (w *World) Dig(ctx context.Context, p agent.Vec3) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	name, ok := w.store.get(p)
	if !ok {
		return fmt.Errorf("dig %s: unloaded: %w", p, agent.ErrInvalidTarget)
	}
	if w.cat.IsAir(name) || !w.cat.IsBreakable(name) {
		return fmt.Errorf("dig %s (%s): %w", p, name, agent.ErrInvalidTarget)
	}
	if !w.inReach(p) {
		return fmt.Errorf("dig %s: out of reach: %w", p, agent.ErrInvalidTarget)
	}
	if w.abortDigs > 0 {
		w.abortDigs--
		w.advance(actionDuration)
		return fmt.Errorf("dig %s: %w", p, agent.ErrAborted)
	}
	if err := w.digFaults[p]; err != nil {
		w.advance(actionDuration)
		return fmt.Errorf("dig %s: %w", p, err)
	}

	req := tooltier.RequirementFor(name)
	tier := tooltier.TierNone
	if held, ok := w.heldStack(); ok && tooltier.KindOf(held.Item) == req.Kind {
		tier, _ = tooltier.TierOf(held.Item)
	}
	w.advance(tooltier.DigDuration(tier))

	w.store.set(p, "air")
	w.digs++
	if f, ok := w.furnaces[p]; ok {
		for _, st := range []agent.ItemStack{f.input, f.fuel, f.output} {
			w.spawnDrop(st.Item, st.Count, p)
		}
		delete(w.furnaces, p)
	}
	if req.Tier == tooltier.TierNone || tooltier.MeetsRequirement(tier, req.Tier) {
		w.spawnDrop(w.cat.DropFor(name), 1, p)
	}
	w.applyGravity(p)
	w.settleBody()
	w.pickup(w.pos)
	return nil
}

// Place puts one item as a block into against+face. The against cell must be solid.
func (w *World) Place(ctx context.Context, item string, against, face agent.Vec3) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	block := w.cat.PlaceAs(item)
	if block == "" {
		return fmt.Errorf("place %s: not a block: %w", item, agent.ErrInvalidTarget)
	}
	if w.inv.count(exactly(item)) == 0 {
		return fmt.Errorf("place %s: %w", item, agent.ErrNoResource)
	}
	target := against.Add(face)
	if !w.solid(against) {
		return fmt.Errorf("place %s against %s: not solid: %w", item, against, agent.ErrInvalidTarget)
	}
	name, ok := w.store.get(target)
	if !ok {
		return fmt.Errorf("place %s at %s: unloaded: %w", item, target, agent.ErrInvalidTarget)
	}
	if !w.cat.Passable(name) || w.cat.IsFluid(name) {
		return fmt.Errorf("place %s at %s (%s): %w", item, target, name, agent.ErrBlocked)
	}
	if target == w.pos || target == w.pos.Up() {
		return fmt.Errorf("place %s at %s: body in the way: %w", item, target, agent.ErrBlocked)
	}
	if !w.inReach(target) {
		return fmt.Errorf("place %s at %s: out of reach: %w", item, target, agent.ErrInvalidTarget)
	}
	w.inv.take(exactly(item), 1)
	w.store.set(target, block)
	if block == "furnace" {
		w.furnaces[target] = &furnace{}
	}
	w.advance(actionDuration)
	return nil
}

func (w *World) Equip(ctx context.Context, item string, slot agent.Slot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inv.count(exactly(item)) == 0 {
		return fmt.Errorf("equip %s: %w", item, agent.ErrNoResource)
	}
	if slot == agent.SlotOffHand {
		w.offHand = item
	} else {
		w.held = item
	}
	return nil
}

func (w *World) OpenStation(ctx context.Context, p agent.Vec3) (agent.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	name, ok := w.store.get(p)
	if !ok || (name != "furnace" && name != "crafting_table") {
		return nil, fmt.Errorf("open %s (%s): %w", p, name, agent.ErrInvalidTarget)
	}
	if !w.inReach(p) {
		return nil, fmt.Errorf("open %s: out of reach: %w", p, agent.ErrInvalidTarget)
	}
	return &containerHandle{w: w, f: w.furnaces[p]}, nil
}

// Craft runs a hand or crafting-table recipe amount times. Nothing is consumed unless
// every unit can be made.
func (w *World) Craft(ctx context.Context, recipeID string, amount int, station *agent.Vec3) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.cat.Recipe(recipeID)
	if !ok {
		return fmt.Errorf("craft %s: unknown recipe: %w", recipeID, agent.ErrInvalidTarget)
	}
	switch r.Station {
	case catalogs.StationHand:
	case catalogs.StationCraftingTable:
		if station == nil {
			return fmt.Errorf("craft %s: no crafting table: %w", recipeID, agent.ErrBlocked)
		}
		name, ok := w.store.get(*station)
		if !ok || name != "crafting_table" || !w.inReach(*station) {
			return fmt.Errorf("craft %s: crafting table at %s unusable: %w", recipeID, *station, agent.ErrBlocked)
		}
	default:
		return fmt.Errorf("craft %s: station %s: %w", recipeID, r.Station, agent.ErrInvalidTarget)
	}
	if amount <= 0 {
		amount = 1
	}
	for _, in := range r.Inputs {
		match := w.matcher(in.Item)
		if w.inv.count(match) < in.Count*amount {
			return fmt.Errorf("craft %s x%d: need %d %s: %w", recipeID, amount, in.Count*amount, in.Item, agent.ErrNoResource)
		}
	}
	for _, in := range r.Inputs {
		w.inv.take(w.matcher(in.Item), in.Count*amount)
	}
	for _, out := range r.Outputs {
		if left := w.inv.add(out.Item, out.Count*amount); left > 0 {
			w.spawnDrop(out.Item, left, w.pos)
		}
	}
	for i := 0; i < amount; i++ {
		w.crafts = append(w.crafts, recipeID)
	}
	w.advance(craftDuration)
	return nil
}

func (w *World) matcher(ingredient string) func(string) bool {
	return func(item string) bool { return w.cat.Matches(ingredient, item) }
}
