package simworld

import (
	"context"
	"time"

	"voxelminer.ai/internal/agent"
)

const (
	maxPathNodes = 20000
	maxPathSpan  = 96
	maxDrop      = 3
)

func (w *World) Position() agent.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

func (w *World) Facing() agent.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.facing
}

// GoTo walks the body along the shortest standable path to a cell satisfying goal.
// Walking costs StepDuration per cell of simulated time; a path longer than the
// timeout allows is not taken and the timeout elapses instead.
func (w *World) GoTo(ctx context.Context, goal agent.Goal, timeout time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failGoTo > 0 {
		w.failGoTo--
		w.advance(timeout)
		return false
	}
	if arrived(w.pos, goal) {
		return true
	}
	path := w.findPath(goal)
	if path == nil {
		w.advance(w.opts.StepDuration)
		return false
	}
	cost := time.Duration(len(path)) * w.opts.StepDuration
	if timeout > 0 && cost > timeout {
		w.advance(timeout)
		return false
	}
	prev := w.pos
	for _, p := range path {
		if d := p.Sub(prev); d.X != 0 || d.Z != 0 {
			w.facing = agent.Vec3{X: d.X, Z: d.Z}.Horizontal()
		}
		prev = p
		w.pos = p
		if p.Y < w.lowestY {
			w.lowestY = p.Y
		}
		w.advance(w.opts.StepDuration)
	}
	return true
}

func arrived(p agent.Vec3, goal agent.Goal) bool {
	if goal.Range <= 0 {
		return p == goal.Pos
	}
	return p.Distance(goal.Pos) <= goal.Range
}

func (w *World) standable(p agent.Vec3) bool {
	return w.passable(p) && w.passable(p.Up()) && w.solid(p.Down())
}

// moves lists the cells reachable in one step: walking level, stepping up one block, or
// dropping at most maxDrop blocks.
func (w *World) moves(from agent.Vec3) []agent.Vec3 {
	out := make([]agent.Vec3, 0, 4)
	for _, d := range agent.Cardinals {
		n := from.Add(d)
		if w.passable(n) && w.passable(n.Up()) {
			land := n
			for i := 0; i < maxDrop && w.passable(land.Down()); i++ {
				land = land.Down()
			}
			if w.standable(land) {
				out = append(out, land)
			}
			continue
		}
		up := n.Up()
		if w.solid(n) && w.passable(from.Up().Up()) && w.standable(up) {
			out = append(out, up)
		}
	}
	return out
}

func (w *World) findPath(goal agent.Goal) []agent.Vec3 {
	start := w.pos
	prev := map[agent.Vec3]agent.Vec3{start: start}
	queue := []agent.Vec3{start}
	for len(queue) > 0 && len(prev) < maxPathNodes {
		cur := queue[0]
		queue = queue[1:]
		if cur != start && arrived(cur, goal) {
			var path []agent.Vec3
			for p := cur; p != start; p = prev[p] {
				path = append(path, p)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, n := range w.moves(cur) {
			if _, seen := prev[n]; seen || n.Manhattan(start) > maxPathSpan {
				continue
			}
			prev[n] = cur
			queue = append(queue, n)
		}
	}
	return nil
}
