package smelting

import (
	"math"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/session"
)

// fuelPreference is the burn order: dense fuels first, then wood. Sticks, tools and
// crafting tables burn too but are never spent.
var fuelPreference = []string{"coal", "charcoal", "dried_kelp_block", "#logs", "#planks"}

const kelpPerBlock = 9

// fuelStock lists held fuel stacks in preference order, skipping exclude.
func fuelStock(r *session.Run, exclude string) []agent.ItemStack {
	var out []agent.ItemStack
	held := r.Agent.Inv.Items()
	for _, pref := range fuelPreference {
		seen := map[string]int{}
		var order []string
		for _, st := range held {
			if st.Item == exclude || !r.Catalog.Matches(pref, st.Item) || r.Catalog.FuelItems(st.Item) <= 0 {
				continue
			}
			if _, ok := seen[st.Item]; !ok {
				order = append(order, st.Item)
			}
			seen[st.Item] += st.Count
		}
		for _, item := range order {
			out = append(out, agent.ItemStack{Item: item, Count: seen[item]})
		}
	}
	return out
}

// fuelUnits is how many units of item smelt amount items.
func fuelUnits(r *session.Run, item string, amount int) int {
	per := r.Catalog.FuelItems(item)
	if per <= 0 || amount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(amount) / per))
}

// chooseFuel picks the fuel to deposit for amount items. When the furnace already holds
// fuel only more of the same item can go in, and only the part not already covered.
func chooseFuel(r *session.Run, input string, amount int, loaded agent.ItemStack) (agent.ItemStack, bool) {
	stock := fuelStock(r, input)
	if loaded.Count > 0 {
		covered := int(float64(loaded.Count) * r.Catalog.FuelItems(loaded.Item))
		if covered >= amount {
			return agent.ItemStack{}, true
		}
		for _, st := range stock {
			if st.Item == loaded.Item {
				return agent.ItemStack{Item: st.Item, Count: min(st.Count, fuelUnits(r, st.Item, amount-covered))}, true
			}
		}
		return agent.ItemStack{}, covered > 0
	}
	for _, st := range stock {
		if need := fuelUnits(r, st.Item, amount); st.Count >= need {
			return agent.ItemStack{Item: st.Item, Count: need}, true
		}
	}
	if len(stock) == 0 {
		return agent.ItemStack{}, false
	}
	// Nothing covers the whole job: burn the largest capacity held and let the job end
	// on exhaustion.
	best := stock[0]
	for _, st := range stock[1:] {
		if float64(st.Count)*r.Catalog.FuelItems(st.Item) > float64(best.Count)*r.Catalog.FuelItems(best.Item) {
			best = st
		}
	}
	return best, true
}

// FuelCapacity is how many items the held fuel (minus exclude) can smelt.
func FuelCapacity(r *session.Run, exclude string) float64 {
	total := 0.0
	for _, st := range fuelStock(r, exclude) {
		total += float64(st.Count) * r.Catalog.FuelItems(st.Item)
	}
	return total
}

// PlanFuel returns the jobs that turn held kelp and spare logs into fuel when the held
// fuel cannot smelt the given jobs. The returned jobs run before the smelt jobs.
func PlanFuel(r *session.Run, jobs []*Job) []*Job {
	need := 0
	inputs := map[string]int{}
	for _, j := range jobs {
		if j.Kind == KindKelpBlock {
			continue
		}
		need += j.Amount
		inputs[j.Input] += j.Amount
	}
	if need == 0 {
		return nil
	}
	capacity := 0.0
	for _, st := range fuelStock(r, "") {
		spare := st.Count - inputs[st.Item]
		if spare > 0 {
			capacity += float64(spare) * r.Catalog.FuelItems(st.Item)
		}
	}
	if capacity >= float64(need) {
		return nil
	}

	var plan []*Job
	kelp := r.Count("kelp")
	dried := r.Count("dried_kelp")
	if kelp > 0 {
		plan = append(plan, &Job{Kind: KindDriedKelp, Input: "kelp", Amount: kelp})
	}
	if blocks := (kelp + dried) / kelpPerBlock; blocks > 0 {
		plan = append(plan, &Job{Kind: KindKelpBlock, Input: "dried_kelp", Amount: blocks})
		capacity += float64(blocks) * r.Catalog.FuelItems("dried_kelp_block")
	}
	if capacity >= float64(need) {
		return plan
	}

	// One log smelts into a charcoal worth eight items; keep one log back to burn for it.
	for _, st := range r.Agent.Inv.Items() {
		if !r.Catalog.HasTag(st.Item, "logs") {
			continue
		}
		spare := agent.CountItem(r.Agent.Inv, st.Item) - inputs[st.Item] - 1
		if spare <= 0 {
			continue
		}
		perCharcoal := r.Catalog.FuelItems("charcoal")
		want := int(math.Ceil((float64(need) - capacity) / perCharcoal))
		amount := min(spare, want)
		plan = append(plan, &Job{Kind: KindCharcoal, Input: st.Item, Amount: amount})
		capacity += float64(amount) * perCharcoal
		break
	}
	return plan
}
