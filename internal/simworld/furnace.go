package simworld

import (
	"context"
	"fmt"
	"time"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
)

// furnace smelts its input one item at a time while fuel burns. One fuel item burns for
// FuelItems times the recipe duration.
type furnace struct {
	input  agent.ItemStack
	fuel   agent.ItemStack
	output agent.ItemStack

	burnLeft time.Duration
	progress time.Duration
}

func (f *furnace) tick(cat *catalogs.Catalogs, dt time.Duration) {
	for dt > 0 {
		if f.input.Count == 0 {
			f.progress = 0
			return
		}
		r, ok := cat.SmeltRecipeByInput(f.input.Item)
		if !ok || len(r.Outputs) == 0 {
			return
		}
		out := r.Outputs[0]
		if f.output.Count > 0 && f.output.Item != out.Item {
			return
		}
		unit := r.SmeltDuration()
		if f.burnLeft <= 0 {
			if f.fuel.Count == 0 {
				return
			}
			f.burnLeft += time.Duration(cat.FuelItems(f.fuel.Item) * float64(unit))
			f.fuel.Count--
			if f.fuel.Count == 0 {
				f.fuel = agent.ItemStack{}
			}
			if f.burnLeft <= 0 {
				return
			}
		}
		step := min(dt, unit-f.progress, f.burnLeft)
		f.progress += step
		f.burnLeft -= step
		dt -= step
		if f.progress >= unit {
			f.progress = 0
			f.input.Count--
			if f.input.Count == 0 {
				f.input = agent.ItemStack{}
			}
			f.output = agent.ItemStack{Item: out.Item, Count: f.output.Count + out.Count}
		}
	}
}

func (f *furnace) burning() bool {
	return f.burnLeft > 0 && f.input.Count > 0
}

func (f *furnace) slot(s agent.ContainerSlot) *agent.ItemStack {
	switch s {
	case agent.SlotInput:
		return &f.input
	case agent.SlotFuel:
		return &f.fuel
	case agent.SlotOutput:
		return &f.output
	}
	return nil
}

// containerHandle is an opened station. Crafting tables expose no slots.
type containerHandle struct {
	w      *World
	f      *furnace
	closed bool
}

func (h *containerHandle) State() agent.ContainerState {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	if h.f == nil {
		return agent.ContainerState{}
	}
	return agent.ContainerState{
		Input:   h.f.input,
		Fuel:    h.f.fuel,
		Output:  h.f.output,
		Burning: h.f.burning(),
	}
}

func (h *containerHandle) Put(ctx context.Context, slot agent.ContainerSlot, item string, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	if h.closed || h.f == nil {
		return fmt.Errorf("put %s: %w", slot, agent.ErrInvalidTarget)
	}
	if count <= 0 {
		return nil
	}
	switch slot {
	case agent.SlotInput:
		if _, ok := h.w.cat.SmeltRecipeByInput(item); !ok {
			return fmt.Errorf("%s is not smeltable: %w", item, agent.ErrInvalidTarget)
		}
	case agent.SlotFuel:
		if h.w.cat.FuelItems(item) <= 0 {
			return fmt.Errorf("%s is not a fuel: %w", item, agent.ErrInvalidTarget)
		}
	default:
		return fmt.Errorf("put into %s: %w", slot, agent.ErrInvalidTarget)
	}
	dst := h.f.slot(slot)
	if dst.Count > 0 && dst.Item != item {
		return fmt.Errorf("%s slot holds %s: %w", slot, dst.Item, agent.ErrBlocked)
	}
	if !h.w.inv.take(exactly(item), count) {
		return fmt.Errorf("put %d %s: %w", count, item, agent.ErrNoResource)
	}
	*dst = agent.ItemStack{Item: item, Count: dst.Count + count}
	return nil
}

func (h *containerHandle) Take(ctx context.Context, slot agent.ContainerSlot) (agent.ItemStack, error) {
	if err := ctx.Err(); err != nil {
		return agent.ItemStack{}, err
	}
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	if h.closed || h.f == nil {
		return agent.ItemStack{}, fmt.Errorf("take %s: %w", slot, agent.ErrInvalidTarget)
	}
	src := h.f.slot(slot)
	if src == nil {
		return agent.ItemStack{}, fmt.Errorf("take %s: %w", slot, agent.ErrInvalidTarget)
	}
	if src.Count == 0 {
		return agent.ItemStack{}, nil
	}
	left := h.w.inv.add(src.Item, src.Count)
	got := agent.ItemStack{Item: src.Item, Count: src.Count - left}
	src.Count = left
	if left == 0 {
		*src = agent.ItemStack{}
	}
	return got, nil
}

func (h *containerHandle) Close() error {
	h.w.mu.Lock()
	h.closed = true
	h.w.mu.Unlock()
	return nil
}
