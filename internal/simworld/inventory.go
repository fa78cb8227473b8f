package simworld

import "voxelminer.ai/internal/agent"

// inventory is a fixed number of slots holding stacks up to each item's max stack.
type inventory struct {
	slots    []agent.ItemStack
	maxStack func(string) int
}

func newInventory(n int, maxStack func(string) int) *inventory {
	return &inventory{slots: make([]agent.ItemStack, n), maxStack: maxStack}
}

// add stores count of item and returns what did not fit.
func (inv *inventory) add(item string, count int) int {
	if count <= 0 || item == "" {
		return 0
	}
	limit := inv.maxStack(item)
	for i := range inv.slots {
		if count == 0 {
			return 0
		}
		st := &inv.slots[i]
		if st.Item != item || st.Count >= limit {
			continue
		}
		n := min(limit-st.Count, count)
		st.Count += n
		count -= n
	}
	for i := range inv.slots {
		if count == 0 {
			return 0
		}
		st := &inv.slots[i]
		if st.Count > 0 {
			continue
		}
		n := min(limit, count)
		*st = agent.ItemStack{Item: item, Count: n}
		count -= n
	}
	return count
}

func (inv *inventory) count(match func(string) bool) int {
	n := 0
	for _, st := range inv.slots {
		if st.Count > 0 && match(st.Item) {
			n += st.Count
		}
	}
	return n
}

// take removes count items satisfying match, in slot order. It removes nothing and
// reports false when fewer are held.
func (inv *inventory) take(match func(string) bool, count int) bool {
	if inv.count(match) < count {
		return false
	}
	for i := len(inv.slots) - 1; i >= 0 && count > 0; i-- {
		st := &inv.slots[i]
		if st.Count == 0 || !match(st.Item) {
			continue
		}
		n := min(st.Count, count)
		st.Count -= n
		count -= n
		if st.Count == 0 {
			*st = agent.ItemStack{}
		}
	}
	return true
}

func (inv *inventory) items() []agent.ItemStack {
	out := make([]agent.ItemStack, 0, len(inv.slots))
	for _, st := range inv.slots {
		if st.Count > 0 {
			out = append(out, st)
		}
	}
	return out
}

func (inv *inventory) empty() int {
	n := 0
	for _, st := range inv.slots {
		if st.Count == 0 {
			n++
		}
	}
	return n
}

func exactly(item string) func(string) bool {
	return func(s string) bool { return s == item }
}
