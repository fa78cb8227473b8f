package wsclient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/protocol"
)

// BlockAt reports false for unloaded cells and for failed queries.
func (c *Client) BlockAt(pos agent.Vec3) (agent.Block, bool) {
	ctx, cancel := c.background()
	defer cancel()
	res, err := c.query(ctx, protocol.QueryMsg{Kind: protocol.QueryBlock, Pos: pos.ToArray()})
	if err != nil || len(res.Blocks) == 0 {
		if err != nil {
			c.log.Warn().Err(err).Stringer("pos", pos).Msg("block query failed")
		}
		return agent.Block{Pos: pos}, false
	}
	b := res.Blocks[0]
	return agent.Block{Name: b.Name, Pos: agent.FromArray(b.Pos)}, b.Loaded
}

// FindNearestBlock narrows the search to the catalog block names match accepts when
// probed at from, asks the server for the nearest candidates of those names, and returns
// the first candidate match accepts at its real position. Predicates that reject most
// positions of an accepted name may miss blocks beyond the candidate limit.
func (c *Client) FindNearestBlock(from agent.Vec3, match func(agent.Block) bool, maxDistance int) (agent.Block, bool) {
	var names []string
	for _, name := range c.opts.Catalog.BlockNames() {
		if match(agent.Block{Name: name, Pos: from}) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return agent.Block{}, false
	}
	ctx, cancel := c.background()
	defer cancel()
	res, err := c.query(ctx, protocol.QueryMsg{
		Kind:        protocol.QueryNearest,
		Pos:         from.ToArray(),
		Names:       names,
		MaxDistance: maxDistance,
		Limit:       protocol.DefaultNearestLimit,
	})
	if err != nil {
		c.log.Warn().Err(err).Strs("names", names).Msg("nearest query failed")
		return agent.Block{}, false
	}
	for _, b := range res.Blocks {
		blk := agent.Block{Name: b.Name, Pos: agent.FromArray(b.Pos)}
		if match(blk) {
			return blk, true
		}
	}
	return agent.Block{}, false
}

func (c *Client) EntitiesNear(pos agent.Vec3, radius float64) []agent.Entity {
	ctx, cancel := c.background()
	defer cancel()
	res, err := c.query(ctx, protocol.QueryMsg{Kind: protocol.QueryEntities, Pos: pos.ToArray(), Radius: radius})
	if err != nil {
		c.log.Warn().Err(err).Msg("entities query failed")
		return nil
	}
	out := make([]agent.Entity, 0, len(res.Entities))
	for _, e := range res.Entities {
		out = append(out, agent.Entity{ID: e.ID, Kind: e.Kind, Pos: agent.FromArray(e.Pos), Item: e.Item, Count: e.Count})
	}
	return out
}

// --- agent.Navigator ---

// GoTo submits a MOVE_TO bounded by timeout on both ends.
func (c *Client) GoTo(ctx context.Context, goal agent.Goal, timeout time.Duration) bool {
	_, err := c.task(ctx, protocol.TaskReq{
		Type:      protocol.TaskMoveTo,
		Target:    goal.Pos.ToArray(),
		Tolerance: goal.Range,
		TimeoutMS: timeout.Milliseconds(),
	}, timeout+c.opts.RequestTimeout)
	if err != nil {
		c.log.Debug().Err(err).Stringer("goal", goal.Pos).Msg("goto failed")
		return false
	}
	return true
}

func (c *Client) Position() agent.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return agent.FromArray(c.obs.Self.Pos)
}

func (c *Client) Facing() agent.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return agent.FromArray(c.obs.Self.Facing).Horizontal()
}

// --- agent.Inventory ---

func (c *Client) Items() []agent.ItemStack {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]agent.ItemStack, 0, len(c.obs.Inventory))
	for _, st := range c.obs.Inventory {
		out = append(out, agent.ItemStack(st))
	}
	return out
}

func (c *Client) EmptySlotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.obs.EmptySlots
}

func (c *Client) HeldItem() (agent.ItemStack, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.obs.Self.MainHand
	return agent.ItemStack(h), h.Item != "" && h.Count > 0
}

// --- agent.Announcer ---

func (c *Client) Announce(msg string) {
	err := c.act(protocol.ActMsg{Instants: []protocol.InstantReq{{
		ID:      "I_" + uuid.NewString(),
		Type:    protocol.InstantSay,
		Channel: "LOCAL",
		Text:    msg,
	}}})
	if err != nil {
		c.log.Warn().Err(err).Str("msg", msg).Msg("announce failed")
	}
}
