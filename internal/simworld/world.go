// Package simworld is a deterministic in-memory voxel world. One World implements every
// collaborator interface of package agent for a single controlled body, with a simulated
// clock so furnace jobs and settle delays take no wall time.
package simworld

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
)

type Options struct {
	Catalog   *catalogs.Catalogs
	Generator Generator

	MinY   int
	MaxY   int
	Radius int // horizontal bound; 0 means unbounded

	Slots        int
	Reach        float64
	StepDuration time.Duration
	PickupDelay  time.Duration
	PickupRadius float64
	Start        time.Time
}

func (o *Options) withDefaults() {
	if o.Catalog == nil {
		o.Catalog = catalogs.MustDefault()
	}
	if o.MaxY <= o.MinY {
		o.MinY, o.MaxY = -64, 128
	}
	if o.Slots <= 0 {
		o.Slots = 36
	}
	if o.Reach <= 0 {
		o.Reach = 4.5
	}
	if o.StepDuration <= 0 {
		o.StepDuration = 200 * time.Millisecond
	}
	if o.PickupDelay <= 0 {
		o.PickupDelay = 500 * time.Millisecond
	}
	if o.PickupRadius <= 0 {
		o.PickupRadius = 1.5
	}
	if o.Start.IsZero() {
		o.Start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
}

type drop struct {
	id      string
	item    string
	count   int
	pos     agent.Vec3
	readyAt time.Time
}

type World struct {
	mu sync.Mutex

	cat   *catalogs.Catalogs
	opts  Options
	store *store

	now     time.Time
	pos     agent.Vec3
	facing  agent.Vec3
	inv     *inventory
	held    string
	offHand string
	lowestY int

	drops    []*drop
	nextDrop int
	furnaces map[agent.Vec3]*furnace
	said     []string

	abortDigs int
	digFaults map[agent.Vec3]error
	failGoTo  int
	digs      int
	crafts    []string
}

func New(opts Options) *World {
	opts.withDefaults()
	w := &World{
		cat:       opts.Catalog,
		opts:      opts,
		store:     newStore(opts.MinY, opts.MaxY, opts.Radius, opts.Generator),
		now:       opts.Start,
		facing:    agent.Vec3{Z: -1},
		furnaces:  map[agent.Vec3]*furnace{},
		digFaults: map[agent.Vec3]error{},
	}
	w.inv = newInventory(opts.Slots, w.cat.MaxStack)
	return w
}

// Agent bundles this world as the collaborators of its single body.
func (w *World) Agent() agent.Agent {
	return agent.Agent{World: w, Nav: w, Act: w, Inv: w, Announcer: w, Clock: w}
}

func (w *World) Catalog() *catalogs.Catalogs { return w.cat }

// Bounds returns the lowest and highest buildable heights.
func (w *World) Bounds() (minY, maxY int) { return w.opts.MinY, w.opts.MaxY }

func (w *World) Reach() float64 { return w.opts.Reach }

// --- setup and inspection ---

// SetBlock overwrites one cell; it reports false outside the bounds.
func (w *World) SetBlock(p agent.Vec3, name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok := w.store.set(p, name)
	if ok && name == "furnace" {
		w.furnaces[p] = &furnace{}
	}
	return ok
}

// Fill sets every cell of the box spanned by a and b.
func (w *World) Fill(a, b agent.Vec3, name string) {
	for y := min(a.Y, b.Y); y <= max(a.Y, b.Y); y++ {
		for x := min(a.X, b.X); x <= max(a.X, b.X); x++ {
			for z := min(a.Z, b.Z); z <= max(a.Z, b.Z); z++ {
				w.SetBlock(agent.V(x, y, z), name)
			}
		}
	}
}

// Teleport places the body with its feet at p.
func (w *World) Teleport(p agent.Vec3) {
	w.mu.Lock()
	w.pos = p
	w.lowestY = p.Y
	w.mu.Unlock()
}

func (w *World) SetFacing(d agent.Vec3) {
	w.mu.Lock()
	w.facing = d.Horizontal()
	w.mu.Unlock()
}

// Give adds items to the inventory and returns what did not fit.
func (w *World) Give(item string, count int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inv.add(item, count)
}

// FurnaceAt exposes the state of a placed furnace.
func (w *World) FurnaceAt(p agent.Vec3) (agent.ContainerState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.furnaces[p]
	if !ok {
		return agent.ContainerState{}, false
	}
	return agent.ContainerState{Input: f.input, Fuel: f.fuel, Output: f.output, Burning: f.burning()}, true
}

// AbortNextDigs makes the next n Dig calls fail with agent.ErrAborted.
func (w *World) AbortNextDigs(n int) {
	w.mu.Lock()
	w.abortDigs = n
	w.mu.Unlock()
}

// FailDigsAt makes every Dig of p fail with err.
func (w *World) FailDigsAt(p agent.Vec3, err error) {
	w.mu.Lock()
	w.digFaults[p] = err
	w.mu.Unlock()
}

// FailNextGoTo makes the next n GoTo calls time out.
func (w *World) FailNextGoTo(n int) {
	w.mu.Lock()
	w.failGoTo = n
	w.mu.Unlock()
}

// DigCount is the number of blocks broken so far.
func (w *World) DigCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.digs
}

// LowestY is the lowest feet height the body reached.
func (w *World) LowestY() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lowestY
}

// Crafted lists the recipe ids crafted, in order.
func (w *World) Crafted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.crafts...)
}

func (w *World) Announcements() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.said...)
}

// Drops lists the item entities lying in the world.
func (w *World) Drops() []agent.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]agent.Entity, 0, len(w.drops))
	for _, d := range w.drops {
		out = append(out, d.entity())
	}
	return out
}

// --- agent.World ---

func (w *World) BlockAt(p agent.Vec3) (agent.Block, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	name, ok := w.store.get(p)
	if !ok {
		return agent.Block{}, false
	}
	return agent.Block{Name: name, Pos: p}, true
}

// FindNearestBlock scans the loaded cube around from. Ties go to the first cell in
// y, x, z order.
func (w *World) FindNearestBlock(from agent.Vec3, match func(agent.Block) bool, maxDistance int) (agent.Block, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var (
		best  agent.Block
		bestD = math.Inf(1)
		found bool
		limit = float64(maxDistance)
	)
	for y := max(from.Y-maxDistance, w.store.minY); y <= min(from.Y+maxDistance, w.store.maxY); y++ {
		for x := from.X - maxDistance; x <= from.X+maxDistance; x++ {
			for z := from.Z - maxDistance; z <= from.Z+maxDistance; z++ {
				p := agent.V(x, y, z)
				d := from.Distance(p)
				if d > limit || d >= bestD {
					continue
				}
				name, ok := w.store.get(p)
				if !ok {
					continue
				}
				b := agent.Block{Name: name, Pos: p}
				if match(b) {
					best, bestD, found = b, d, true
				}
			}
		}
	}
	return best, found
}

func (w *World) EntitiesNear(p agent.Vec3, radius float64) []agent.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []agent.Entity
	for _, d := range w.drops {
		if d.pos.Distance(p) <= radius {
			out = append(out, d.entity())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Pos.Distance(p), out[j].Pos.Distance(p)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *drop) entity() agent.Entity {
	return agent.Entity{ID: d.id, Kind: agent.EntityItem, Pos: d.pos, Item: d.item, Count: d.count}
}

// --- agent.Inventory ---

func (w *World) Items() []agent.ItemStack {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inv.items()
}

func (w *World) EmptySlotCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inv.empty()
}

func (w *World) HeldItem() (agent.ItemStack, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heldStack()
}

func (w *World) heldStack() (agent.ItemStack, bool) {
	if w.held == "" {
		return agent.ItemStack{}, false
	}
	n := w.inv.count(exactly(w.held))
	if n == 0 {
		w.held = ""
		return agent.ItemStack{}, false
	}
	return agent.ItemStack{Item: w.held, Count: n}, true
}

// --- agent.Announcer ---

func (w *World) Announce(msg string) {
	w.mu.Lock()
	w.said = append(w.said, msg)
	w.mu.Unlock()
}

// --- agent.Clock ---

func (w *World) Now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}

// Sleep advances simulated time by d without blocking.
func (w *World) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	w.advance(d)
	w.mu.Unlock()
	return nil
}

// advance moves the clock, runs furnaces and picks up ready drops. Callers hold mu.
func (w *World) advance(d time.Duration) {
	if d <= 0 {
		w.pickup(w.pos)
		return
	}
	w.now = w.now.Add(d)
	for _, f := range w.furnaces {
		f.tick(w.cat, d)
	}
	w.pickup(w.pos)
}

func (w *World) spawnDrop(item string, count int, at agent.Vec3) {
	if item == "" || count <= 0 {
		return
	}
	for i := 0; i < 64 && w.passable(at.Down()); i++ {
		at = at.Down()
	}
	w.nextDrop++
	w.drops = append(w.drops, &drop{
		id:      fmt.Sprintf("item-%d", w.nextDrop),
		item:    item,
		count:   count,
		pos:     at,
		readyAt: w.now.Add(w.opts.PickupDelay),
	})
}

// pickup collects ready drops within reach of a body standing at feet.
func (w *World) pickup(feet agent.Vec3) {
	kept := w.drops[:0]
	for _, d := range w.drops {
		near := d.pos.Distance(feet) <= w.opts.PickupRadius || d.pos.Distance(feet.Up()) <= w.opts.PickupRadius
		if near && !w.now.Before(d.readyAt) {
			d.count = w.inv.add(d.item, d.count)
		}
		if d.count > 0 {
			kept = append(kept, d)
		}
	}
	w.drops = kept
}

func (w *World) passable(p agent.Vec3) bool {
	name, ok := w.store.get(p)
	return ok && w.cat.Passable(name)
}

func (w *World) solid(p agent.Vec3) bool {
	name, ok := w.store.get(p)
	return ok && w.cat.IsSolid(name)
}

func (w *World) inReach(p agent.Vec3) bool {
	return w.pos.Up().Distance(p) <= w.opts.Reach
}

// settleBody drops the body onto the first solid floor below it.
func (w *World) settleBody() {
	for i := 0; i < 256 && w.passable(w.pos.Down()); i++ {
		w.pos = w.pos.Down()
	}
	if w.pos.Y < w.lowestY {
		w.lowestY = w.pos.Y
	}
}

// applyGravity lets falling blocks above an emptied cell drop down the column.
func (w *World) applyGravity(hole agent.Vec3) {
	for i := 0; i < 256; i++ {
		above := hole.Up()
		name, ok := w.store.get(above)
		if !ok || !w.cat.HasGravity(name) {
			return
		}
		land := hole
		for j := 0; j < 256 && w.passable(land.Down()); j++ {
			land = land.Down()
		}
		w.store.set(land, name)
		w.store.set(above, "air")
		hole = above
	}
}

// SpawnOptions configures Spawn.
type SpawnOptions struct {
	Catalog  *catalogs.Catalogs
	Seed     int64
	SurfaceY int
	// Logs is the number of oak logs the body starts with.
	Logs int
}

// Spawn builds a noise-terrain world and stands the body on open ground next to the
// origin.
func Spawn(opts SpawnOptions) *World {
	t := NewTerrain(opts.Seed, opts.SurfaceY)
	w := New(Options{Catalog: opts.Catalog, Generator: t, MinY: -64, MaxY: 256})
	x := 0
	for ; x < 64; x++ {
		y := t.SurfaceY(x, 0)
		if t.Block(x, y+1, 0) == "air" && t.Block(x, y+2, 0) == "air" {
			break
		}
	}
	w.Teleport(agent.V(x, t.SurfaceY(x, 0)+1, 0))
	if opts.Logs > 0 {
		w.Give("oak_log", opts.Logs)
	}
	return w
}
