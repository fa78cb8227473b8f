// Package descent digs a one-wide staircase down along a fixed heading.
package descent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/actions"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/mining/vein"
)

// refillLimit bounds re-digging a cell that falling blocks keep filling.
const refillLimit = 6

type State int

const (
	StateDescending State = iota
	StateComplete
)

func (s State) String() string {
	if s == StateComplete {
		return "complete"
	}
	return "descending"
}

// Reason tells why a descent completed.
type Reason string

const (
	ReasonTargetDepth   Reason = "target_depth"
	ReasonInventoryFull Reason = "inventory_full"
	ReasonStopped       Reason = "stopped"
	ReasonMaxSteps      Reason = "max_steps"
	ReasonBlocked       Reason = "blocked"
	ReasonMaterial      Reason = "material"
)

var errBlocked = errors.New("step blocked")

// Options shapes one descent.
type Options struct {
	// TargetY ends the descent once the feet reach it.
	TargetY int
	// MaxSteps defaults to the configured staircase step limit.
	MaxSteps int
	// Material and MaterialTarget end the descent once enough of Material (an item or
	// #tag) is held.
	Material       string
	MaterialTarget int
	// CollectOres mines harvestable veins exposed by the staircase.
	CollectOres bool
}

// Result summarizes a finished descent.
type Result struct {
	Reason Reason
	Steps  int
	Depth  int
	Ores   int
}

// Controller holds the state of one staircase.
type Controller struct {
	r     *session.Run
	opts  Options
	state State
	dir   agent.Vec3
	steps int
	ores  int
	log   zerolog.Logger
}

// New fixes the heading from the run's cached direction.
func New(r *session.Run, opts Options) *Controller {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = r.Config.MaxStaircaseSteps
	}
	return &Controller{
		r:    r,
		opts: opts,
		dir:  r.Direction(),
		log:  r.Log.With().Str("component", "descent").Logger(),
	}
}

func (c *Controller) State() State { return c.state }

// Heading is the current excavation direction.
func (c *Controller) Heading() agent.Vec3 { return c.dir }

// Run steps until a stop condition holds and returns why.
func (c *Controller) Run(ctx context.Context) Result {
	r := c.r
	prev := r.Session.Mode()
	r.SetMode(session.ModeStaircase)
	defer r.SetMode(prev)

	c.log.Info().Int("target_y", c.opts.TargetY).Stringer("dir", c.dir).Msg("staircase started")
	for {
		if reason, done := c.done(ctx); done {
			c.state = StateComplete
			res := Result{Reason: reason, Steps: c.steps, Depth: r.TrackDepth(), Ores: c.ores}
			c.log.Info().Str("reason", string(reason)).Int("steps", res.Steps).Int("depth", res.Depth).Msg("staircase complete")
			return res
		}
		if err := c.Step(ctx); err != nil {
			c.state = StateComplete
			c.log.Warn().Err(err).Int("steps", c.steps).Msg("staircase blocked")
			return Result{Reason: ReasonBlocked, Steps: c.steps, Depth: r.TrackDepth(), Ores: c.ores}
		}
	}
}

func (c *Controller) done(ctx context.Context) (Reason, bool) {
	r := c.r
	switch {
	case r.ShouldStop(ctx):
		return ReasonStopped, true
	case r.Position().Y <= c.opts.TargetY:
		return ReasonTargetDepth, true
	case r.InventoryFull():
		return ReasonInventoryFull, true
	case c.opts.Material != "" && r.Count(c.opts.Material) >= c.opts.MaterialTarget:
		return ReasonMaterial, true
	case c.steps >= c.opts.MaxSteps:
		return ReasonMaxSteps, true
	}
	return "", false
}

// Step descends one level. When the heading is blocked it turns clockwise and tries the
// other three directions before giving up.
func (c *Controller) Step(ctx context.Context) error {
	var errs []error
	for turn := 0; turn < len(agent.Cardinals); turn++ {
		err := c.stepOnce(ctx, c.dir)
		if err == nil {
			c.steps++
			c.r.TrackDepth()
			if c.opts.CollectOres {
				c.collectOres(ctx)
			}
			return nil
		}
		errs = append(errs, err)
		if c.r.ShouldStop(ctx) {
			break
		}
		c.dir = c.dir.RotateRight()
		c.r.SetDirection(c.dir)
		c.log.Debug().Err(err).Stringer("dir", c.dir).Msg("turning")
	}
	return fmt.Errorf("%w: %w", errBlocked, errors.Join(errs...))
}

func (c *Controller) stepOnce(ctx context.Context, dir agent.Vec3) error {
	r := c.r
	feet := r.Position()
	forward := feet.Add(dir)
	// Head, feet and landing cells of the next stair, top first so falling blocks land
	// where the next clear finds them.
	cells := []agent.Vec3{forward.Up(), forward, forward.Down()}
	for _, cell := range cells {
		if err := c.clear(ctx, cell); err != nil {
			return err
		}
	}
	landing := forward.Down()
	if !actions.GoOnto(ctx, r, landing) {
		return fmt.Errorf("walk onto %s: %w", landing, actions.ErrUnreachable)
	}
	if err := r.Settle(ctx); err != nil {
		return err
	}
	// Gravel or sand may have refilled the cells we just cleared.
	for _, cell := range []agent.Vec3{landing.Up(), landing} {
		if !actions.Passable(r, cell) {
			if err := c.clear(ctx, cell); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Controller) clear(ctx context.Context, pos agent.Vec3) error {
	for i := 0; i < refillLimit; i++ {
		if actions.Passable(c.r, pos) {
			return nil
		}
		if err := actions.Clear(ctx, c.r, pos); err != nil {
			return err
		}
	}
	if actions.Passable(c.r, pos) {
		return nil
	}
	return fmt.Errorf("%s keeps refilling: %w", pos, agent.ErrBlocked)
}

// collectOres mines veins touching the body and returns to the stair.
func (c *Controller) collectOres(ctx context.Context) {
	r := c.r
	stair := r.Position()
	for _, origin := range []agent.Vec3{stair, stair.Up()} {
		for _, off := range agent.Neighbors6 {
			if r.ShouldStop(ctx) {
				return
			}
			pos := origin.Add(off)
			b, ok := r.Agent.World.BlockAt(pos)
			if !ok || !actions.Harvestable(r, b.Name) {
				continue
			}
			c.ores += vein.ExtractVein(ctx, r, pos, b.Name)
		}
	}
	if r.Position() != stair && !actions.GoOnto(ctx, r, stair) {
		c.log.Warn().Stringer("stair", stair).Msg("could not return to staircase")
	}
}
