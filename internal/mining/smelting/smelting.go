// Package smelting runs furnace jobs one at a time: it finds or builds a furnace, loads
// fuel sized to the job, polls until the output is ready and collects it.
package smelting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/actions"
	"voxelminer.ai/internal/mining/crafting"
	"voxelminer.ai/internal/mining/session"
)

const (
	furnaceItem        = "furnace"
	furnaceCobblestone = 8
)

var (
	ErrBusy      = errors.New("smelting already in progress")
	ErrNoFurnace = errors.New("no furnace available")
	ErrNoFuel    = errors.New("no fuel")
	ErrNoInput   = errors.New("input not held")
	ErrExhausted = errors.New("fuel exhausted with input remaining")
	ErrTimeout   = errors.New("smelting timed out")
)

// Orchestrator owns the job queue. Only one Smelt call runs at a time.
type Orchestrator struct {
	crafter *crafting.Manager
	queue   Queue
	running atomic.Bool
}

func New(crafter *crafting.Manager) *Orchestrator {
	return &Orchestrator{crafter: crafter}
}

// Jobs snapshots every job this orchestrator has seen.
func (o *Orchestrator) Jobs() []Job { return o.queue.Snapshot() }

// Smelt enqueues jobs and processes the queue in order. It returns the number of items
// produced across all jobs. Failed jobs are recorded and do not stop later ones.
func (o *Orchestrator) Smelt(ctx context.Context, r *session.Run, jobs ...*Job) (int, error) {
	if !o.running.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer o.running.Store(false)

	for _, j := range jobs {
		o.queue.Enqueue(j)
		r.Emit(session.EventJob, j.String(), map[string]any{"id": j.ID, "status": string(StatusPending)})
	}
	prev := r.Session.Mode()
	r.SetMode(session.ModeSmelting)
	defer r.SetMode(prev)

	total := 0
	for {
		if r.ShouldStop(ctx) {
			return total, fmt.Errorf("smelting interrupted with %d jobs pending: %w", o.queue.Pending(), context.Canceled)
		}
		j, ok := o.queue.Start()
		if !ok {
			return total, nil
		}
		r.Log.Info().Stringer("job", j).Msg("furnace job started")
		result, err := o.run(ctx, r, j)
		status, reason := StatusDone, ""
		if err != nil {
			status, reason = StatusFailed, err.Error()
			r.Announce("furnace job %s failed: %v", j, err)
		}
		o.queue.Finish(j, status, result, reason)
		total += result
		r.Metrics.FurnaceJob(ctx, string(j.Kind), string(status))
		r.Emit(session.EventJob, j.String(), map[string]any{
			"id": j.ID, "status": string(status), "result": result, "reason": reason,
		})
	}
}

func (o *Orchestrator) run(ctx context.Context, r *session.Run, j *Job) (int, error) {
	if j.Kind == KindKelpBlock {
		before := agent.CountItem(r.Agent.Inv, "dried_kelp_block")
		if err := o.crafter.CraftAtTable(ctx, r, "dried_kelp_block", j.Amount); err != nil {
			return 0, err
		}
		return agent.CountItem(r.Agent.Inv, "dried_kelp_block") - before, nil
	}

	recipe, ok := r.Catalog.SmeltRecipeByInput(j.Input)
	if !ok || len(recipe.Outputs) == 0 {
		return 0, fmt.Errorf("%s: %w", j.Input, agent.ErrInvalidTarget)
	}
	amount := min(j.Amount, agent.CountItem(r.Agent.Inv, j.Input))
	if amount <= 0 {
		return 0, fmt.Errorf("%s: %w", j.Input, ErrNoInput)
	}

	pos, placed, err := o.furnace(ctx, r)
	if err != nil {
		return 0, err
	}
	if placed {
		defer actions.Reclaim(ctx, r, pos, furnaceItem)
	}
	c, err := r.Agent.Act.OpenStation(ctx, pos)
	if err != nil {
		return 0, fmt.Errorf("open furnace at %s: %w", pos, err)
	}
	defer c.Close()

	st := c.State()
	if st.Output.Count > 0 {
		if _, err := c.Take(ctx, agent.SlotOutput); err != nil {
			return 0, fmt.Errorf("clear furnace output: %w", err)
		}
	}
	fuel, ok := chooseFuel(r, j.Input, amount, st.Fuel)
	if !ok {
		return 0, fmt.Errorf("%s: %w", j, ErrNoFuel)
	}
	if fuel.Count > 0 {
		if err := c.Put(ctx, agent.SlotFuel, fuel.Item, fuel.Count); err != nil {
			return 0, fmt.Errorf("load fuel %dx%s: %w", fuel.Count, fuel.Item, err)
		}
	}
	if err := c.Put(ctx, agent.SlotInput, j.Input, amount); err != nil {
		return 0, fmt.Errorf("load input: %w", err)
	}
	r.Log.Debug().Str("fuel", fuel.Item).Int("fuel_count", fuel.Count).Int("amount", amount).Msg("furnace loaded")

	return o.poll(ctx, r, c, amount)
}

// poll collects output until amount is produced, the input runs dry, the fuel runs out
// or the scaled timeout passes. Unsmelted input is taken back on failure.
func (o *Orchestrator) poll(ctx context.Context, r *session.Run, c agent.Container, amount int) (int, error) {
	cfg := r.Config.Furnace
	deadline := r.Now().Add(cfg.Timeout(amount))
	result := 0
	take := func() error {
		got, err := c.Take(ctx, agent.SlotOutput)
		result += got.Count
		return err
	}
	takeBack := func() {
		if _, err := c.Take(ctx, agent.SlotInput); err != nil {
			r.Log.Warn().Err(err).Msg("could not take back furnace input")
		}
	}
	graced := false
	for {
		if err := r.Agent.Clock.Sleep(ctx, cfg.PollInterval()); err != nil {
			takeBack()
			return result, err
		}
		st := c.State()
		if st.Output.Count > 0 {
			if err := take(); err != nil {
				return result, fmt.Errorf("take output: %w", err)
			}
		}
		if result >= amount {
			return result, nil
		}
		switch {
		case st.Input.Count == 0:
			// The last item may land just after the input empties.
			if graced {
				return result, nil
			}
			graced = true
		case !st.Burning && st.Fuel.Count == 0:
			takeBack()
			return result, fmt.Errorf("%d of %d smelted: %w", result, amount, ErrExhausted)
		}
		if r.ShouldStop(ctx) {
			takeBack()
			return result, fmt.Errorf("%d of %d smelted: %w", result, amount, context.Canceled)
		}
		if !r.Now().Before(deadline) {
			takeBack()
			return result, fmt.Errorf("%d of %d after %s: %w", result, amount, cfg.Timeout(amount).Round(time.Second), ErrTimeout)
		}
	}
}

// furnace finds one within reach or crafts and places one. placed reports a furnace put
// down by this call.
func (o *Orchestrator) furnace(ctx context.Context, r *session.Run) (agent.Vec3, bool, error) {
	if pos, ok := actions.FindStation(ctx, r, furnaceItem); ok {
		return pos, false, nil
	}
	if agent.CountItem(r.Agent.Inv, furnaceItem) == 0 {
		if have := r.Count("#stone_crafting_materials"); have < furnaceCobblestone {
			return agent.Vec3{}, false, fmt.Errorf("need %d cobblestone, have %d: %w", furnaceCobblestone, have, ErrNoFurnace)
		}
		if err := o.crafter.CraftAtTable(ctx, r, furnaceItem, 1); err != nil {
			return agent.Vec3{}, false, fmt.Errorf("%w: %w", ErrNoFurnace, err)
		}
	}
	pos, ok := actions.PlaceStation(ctx, r, actions.Placement{Item: furnaceItem, ClearOccupied: true})
	if !ok {
		return agent.Vec3{}, false, fmt.Errorf("no placement position: %w", ErrNoFurnace)
	}
	return pos, true, nil
}
