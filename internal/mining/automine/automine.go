// Package automine sequences a whole mining session: baseline pickaxe, stone upgrade,
// iron gathering, iron upgrade and the ore loop that runs until the inventory fills.
package automine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/config"
	"voxelminer.ai/internal/mining/crafting"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/mining/smelting"
	"voxelminer.ai/internal/telemetry"
)

// Termination reasons recorded on the session.
const (
	ReasonInventoryFull  = "inventory_full"
	ReasonNoPickaxe      = "no_pickaxe"
	ReasonNoStonePickaxe = "no_stone_pickaxe"
	ReasonBudget         = "budget_exceeded"
	ReasonStopped        = "stopped"
	ReasonCancelled      = "cancelled"
	ReasonStalled        = "stalled"
)

var (
	ErrAlreadyRunning = errors.New("auto-mine session already running")
	ErrNoPickaxe      = errors.New("no pickaxe craftable")
	ErrNoStonePickaxe = errors.New("no stone pickaxe craftable")
	ErrBudget         = errors.New("session time budget exceeded")
	ErrStopped        = errors.New("session stopped")
	ErrStalled        = errors.New("no tunnel direction makes progress")
)

// Options wires a Controller to its collaborators. Config is the base snapshot that
// per-session overrides merge into.
type Options struct {
	Agent   agent.Agent
	Config  config.MiningConfig
	Catalog *catalogs.Catalogs
	Logger  zerolog.Logger
	Metrics *telemetry.Recorder
	Sink    session.Sink
}

// Outcome is the final report of one session.
type Outcome struct {
	SessionID string         `json:"session_id"`
	Success   bool           `json:"success"`
	Reason    string         `json:"reason"`
	Status    session.Status `json:"status"`
	Cycles    int            `json:"cycles"`
	Tier      string         `json:"tier"`
	Jobs      []smelting.Job `json:"jobs,omitempty"`
}

// Controller runs at most one session at a time. Stop, Status and DoingTask are safe to
// call from other goroutines while Run is in progress.
type Controller struct {
	opts    Options
	running atomic.Bool

	mu      sync.Mutex
	run     *session.Run
	smelter *smelting.Orchestrator
	last    *Outcome
}

func New(opts Options) *Controller {
	if opts.Catalog == nil {
		opts.Catalog = catalogs.MustDefault()
	}
	return &Controller{opts: opts}
}

// Run executes one session with overrides merged over the base config and blocks until
// it terminates. Failures are returned as errors wrapping one of the package sentinels;
// the Outcome is filled in either way.
func (c *Controller) Run(ctx context.Context, overrides config.Overrides) (Outcome, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Outcome{}, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	cfg := c.opts.Config.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("mining config: %w", err)
	}

	var r *session.Run
	ag := c.opts.Agent
	if ag.Clock == nil {
		ag.Clock = agent.SystemClock{}
	}
	if budget := cfg.SessionBudget(); budget > 0 {
		ag.Clock = &budgetClock{
			Clock:    ag.Clock,
			deadline: ag.Clock.Now().Add(budget),
			expired:  func() { r.Stop(ReasonBudget) },
		}
	}
	r = session.NewRun(session.Options{
		Agent:   ag,
		Config:  cfg,
		Catalog: c.opts.Catalog,
		Logger:  c.opts.Logger.With().Str("component", "automine").Logger(),
		Metrics: c.opts.Metrics,
		Sink:    c.opts.Sink,
	})
	crafter := crafting.New()
	r.Tools = crafter
	m := &miner{
		r:       r,
		crafter: crafter,
		smelter: smelting.New(crafter),
		skip:    map[agent.Vec3]bool{},
	}
	if budget := cfg.SessionBudget(); budget > 0 {
		m.deadline = r.Now().Add(budget)
	}

	c.mu.Lock()
	c.run, c.smelter = r, m.smelter
	c.mu.Unlock()

	r.SetDoingTask(true)
	defer r.SetDoingTask(false)

	r.Announce("auto-mine started at %s", r.Position())
	reason, err := m.session(ctx)
	success := err == nil
	if !success {
		r.Log.Error().Err(err).Str("reason", reason).Msg("session failed")
		r.Announce("auto-mine failed: %v", err)
	} else {
		r.Announce("auto-mine finished: %s", reason)
	}
	r.Terminate(reason)
	elapsed := r.Now().Sub(r.Session.Status().StartedAt)
	r.Metrics.SessionFinished(ctx, success, elapsed.Seconds())

	out := Outcome{
		SessionID: r.Session.ID(),
		Success:   success,
		Reason:    reason,
		Status:    r.Session.Status(),
		Cycles:    m.cycles,
		Tier:      m.pickaxeTier().String(),
		Jobs:      m.smelter.Jobs(),
	}
	c.mu.Lock()
	c.last = &out
	c.mu.Unlock()
	return out, err
}

// Stop asks the running session to end at its next iteration boundary. It reports
// whether a session was running.
func (c *Controller) Stop(reason string) bool {
	if !c.running.Load() {
		return false
	}
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil {
		return false
	}
	if reason == "" {
		reason = ReasonStopped
	}
	r.Stop(reason)
	return true
}

// Running reports whether a session is in progress.
func (c *Controller) Running() bool { return c.running.Load() }

// DoingTask is held for the whole session so reactive behaviours such as automatic tool
// replacement stay out of the way.
func (c *Controller) DoingTask() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil && c.run.DoingTask()
}

// Status snapshots the current session, or the last one when idle.
func (c *Controller) Status() (session.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return session.Status{}, false
	}
	return c.run.Session.Status(), true
}

// Jobs lists the furnace jobs of the current or last session.
func (c *Controller) Jobs() []smelting.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.smelter == nil {
		return nil
	}
	return c.smelter.Jobs()
}

// Last returns the outcome of the most recent finished session.
func (c *Controller) Last() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Outcome{}, false
	}
	return *c.last, true
}

// budgetClock raises the stop flag on the first sleep that ends past the deadline, so
// every bounded loop notices the exhausted budget at its next check.
type budgetClock struct {
	agent.Clock
	deadline time.Time
	expired  func()
}

func (b *budgetClock) Sleep(ctx context.Context, d time.Duration) error {
	err := b.Clock.Sleep(ctx, d)
	if !b.Now().Before(b.deadline) {
		b.expired()
	}
	return err
}
