package wsclient

import (
	"context"

	"github.com/google/uuid"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/protocol"
)

func (c *Client) Dig(ctx context.Context, pos agent.Vec3) error {
	_, err := c.task(ctx, protocol.TaskReq{Type: protocol.TaskMine, BlockPos: pos.ToArray()}, c.opts.RequestTimeout)
	return err
}

func (c *Client) Place(ctx context.Context, item string, against agent.Vec3, face agent.Vec3) error {
	_, err := c.task(ctx, protocol.TaskReq{
		Type:     protocol.TaskPlace,
		ItemID:   item,
		BlockPos: against.ToArray(),
		Face:     face.ToArray(),
	}, c.opts.RequestTimeout)
	return err
}

func (c *Client) Equip(ctx context.Context, item string, slot agent.Slot) error {
	_, err := c.task(ctx, protocol.TaskReq{Type: protocol.TaskEquip, ItemID: item, Slot: string(slot)}, c.opts.RequestTimeout)
	return err
}

func (c *Client) Craft(ctx context.Context, recipeID string, amount int, station *agent.Vec3) error {
	t := protocol.TaskReq{Type: protocol.TaskCraft, RecipeID: recipeID, Count: amount}
	if station != nil {
		st := station.ToArray()
		t.Station = &st
	}
	_, err := c.task(ctx, t, c.opts.RequestTimeout)
	return err
}

// OpenStation opens the station on the server and returns a handle whose slot
// operations run as TRANSFER tasks.
func (c *Client) OpenStation(ctx context.Context, pos agent.Vec3) (agent.Container, error) {
	if _, err := c.query(ctx, protocol.QueryMsg{Kind: protocol.QueryContainer, Pos: pos.ToArray()}); err != nil {
		return nil, err
	}
	return &container{c: c, pos: pos.ToArray()}, nil
}

type container struct {
	c   *Client
	pos [3]int
}

func (ct *container) State() agent.ContainerState {
	ctx, cancel := ct.c.background()
	defer cancel()
	res, err := ct.c.query(ctx, protocol.QueryMsg{Kind: protocol.QueryContainer, Pos: ct.pos})
	if err != nil || res.Container == nil {
		ct.c.log.Warn().Err(err).Ints("pos", ct.pos[:]).Msg("container query failed")
		return agent.ContainerState{}
	}
	st := res.Container
	return agent.ContainerState{
		Input:   agent.ItemStack(st.Input),
		Fuel:    agent.ItemStack(st.Fuel),
		Output:  agent.ItemStack(st.Output),
		Burning: st.Burning,
	}
}

func (ct *container) Put(ctx context.Context, slot agent.ContainerSlot, item string, count int) error {
	_, err := ct.c.task(ctx, protocol.TaskReq{
		Type:      protocol.TaskTransfer,
		Direction: protocol.TransferPut,
		BlockPos:  ct.pos,
		Slot:      string(slot),
		ItemID:    item,
		Count:     count,
	}, ct.c.opts.RequestTimeout)
	return err
}

func (ct *container) Take(ctx context.Context, slot agent.ContainerSlot) (agent.ItemStack, error) {
	ev, err := ct.c.task(ctx, protocol.TaskReq{
		Type:      protocol.TaskTransfer,
		Direction: protocol.TransferTake,
		BlockPos:  ct.pos,
		Slot:      string(slot),
	}, ct.c.opts.RequestTimeout)
	if err != nil {
		return agent.ItemStack{}, err
	}
	return agent.ItemStack{Item: ev.Item, Count: ev.Count}, nil
}

func (ct *container) Close() error {
	return ct.c.act(protocol.ActMsg{Instants: []protocol.InstantReq{{
		ID:       "I_" + uuid.NewString(),
		Type:     protocol.InstantClose,
		BlockPos: ct.pos,
	}}})
}
