// Package agent declares the collaborators the mining core consumes: a read-only world
// oracle, a navigation engine, low-level actuation, the inventory and an outbound
// announce channel. Implementations live in internal/simworld (in-memory) and
// internal/transport/wsclient (remote world over websocket).
package agent

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAborted is returned by actuation when an action was interrupted (block changed,
	// agent pushed, server dropped the task). Callers may retry it.
	ErrAborted = errors.New("action aborted")
	// ErrTimeout is returned when an action did not complete in its time budget.
	ErrTimeout = errors.New("action timed out")
	// ErrNoResource is returned when the inventory lacks the items an action consumes.
	ErrNoResource = errors.New("missing resources")
	// ErrInvalidTarget is returned for out-of-reach, unloaded or incompatible targets.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrBlocked is returned when the target cell is occupied or a station is missing.
	ErrBlocked = errors.New("blocked")
)

// Slot is an equipment slot.
type Slot string

const (
	SlotHand    Slot = "hand"
	SlotOffHand Slot = "off-hand"
)

// ItemStack is a counted stack of one item.
type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Block is a world cell with the name of the block occupying it.
type Block struct {
	Name string `json:"name"`
	Pos  Vec3   `json:"pos"`
}

// Entity kinds reported by EntitiesNear.
const (
	EntityItem  = "ITEM"
	EntityAgent = "AGENT"
	EntityMob   = "MOB"
)

// Entity is a non-block object in the world. Dropped items carry Item/Count.
type Entity struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Pos   Vec3   `json:"pos"`
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}

// Goal is a navigation target. Range 0 means "stand exactly on Pos".
type Goal struct {
	Pos   Vec3
	Range float64
}

// World is the read-only world oracle.
type World interface {
	// BlockAt reports false for unloaded cells.
	BlockAt(pos Vec3) (Block, bool)
	FindNearestBlock(from Vec3, match func(Block) bool, maxDistance int) (Block, bool)
	EntitiesNear(pos Vec3, radius float64) []Entity
}

// Navigator moves the agent. GoTo blocks until arrival, timeout or ctx cancellation.
type Navigator interface {
	GoTo(ctx context.Context, goal Goal, timeout time.Duration) bool
	Position() Vec3
	// Facing returns the horizontal unit vector the agent looks along (Y is always 0).
	Facing() Vec3
}

// Actuator performs fallible actions on the world.
type Actuator interface {
	Dig(ctx context.Context, pos Vec3) error
	// Place puts item into the cell against.Add(face).
	Place(ctx context.Context, item string, against Vec3, face Vec3) error
	Equip(ctx context.Context, item string, slot Slot) error
	OpenStation(ctx context.Context, pos Vec3) (Container, error)
	// Craft runs recipeID amount times; station is nil for hand recipes.
	Craft(ctx context.Context, recipeID string, amount int, station *Vec3) error
}

// Inventory exposes the agent's carried items.
type Inventory interface {
	Items() []ItemStack
	EmptySlotCount() int
	HeldItem() (ItemStack, bool)
}

// Announcer receives human-readable progress and failure messages.
type Announcer interface {
	Announce(msg string)
}

// Clock abstracts time so suspension points can be simulated.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Agent bundles the collaborators of one controlled body.
type Agent struct {
	World     World
	Nav       Navigator
	Act       Actuator
	Inv       Inventory
	Announcer Announcer
	Clock     Clock
}

// Count sums the stacks whose item name satisfies match.
func Count(inv Inventory, match func(string) bool) int {
	n := 0
	for _, st := range inv.Items() {
		if match(st.Item) {
			n += st.Count
		}
	}
	return n
}

// CountItem counts one exact item name.
func CountItem(inv Inventory, item string) int {
	return Count(inv, func(s string) bool { return s == item })
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AnnounceFunc adapts a function to Announcer.
type AnnounceFunc func(msg string)

func (f AnnounceFunc) Announce(msg string) { f(msg) }

// ContainerSlot names a station slot.
type ContainerSlot string

const (
	SlotInput  ContainerSlot = "input"
	SlotFuel   ContainerSlot = "fuel"
	SlotOutput ContainerSlot = "output"
)

// ContainerState is a snapshot of an opened station.
type ContainerState struct {
	Input   ItemStack `json:"input"`
	Fuel    ItemStack `json:"fuel"`
	Output  ItemStack `json:"output"`
	Burning bool      `json:"burning"`
}

// Container is an opened station (furnace). It is valid until Close.
type Container interface {
	State() ContainerState
	// Put moves count of item from the inventory into slot.
	Put(ctx context.Context, slot ContainerSlot, item string, count int) error
	// Take moves the whole slot content into the inventory.
	Take(ctx context.Context, slot ContainerSlot) (ItemStack, error)
	Close() error
}
