package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/config"
	"voxelminer.ai/internal/mining/tooltier"
	"voxelminer.ai/internal/telemetry"
)

// Event is one journal record emitted during a run.
type Event struct {
	Time      time.Time      `json:"time"`
	SessionID string         `json:"session_id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Event kinds.
const (
	EventAnnounce  = "announce"
	EventPhase     = "phase"
	EventMode      = "mode"
	EventJob       = "furnace_job"
	EventTerminate = "terminate"
)

// Sink receives run events (journal, tests).
type Sink interface {
	Record(Event)
}

// ToolProvider crafts or equips a tool meeting a requirement. The crafting manager
// implements it; excavation code calls it when no held tool qualifies.
type ToolProvider interface {
	EnsureToolFor(ctx context.Context, r *Run, req tooltier.Requirement) bool
}

// Options configures NewRun.
type Options struct {
	Agent   agent.Agent
	Config  config.MiningConfig
	Catalog *catalogs.Catalogs
	Logger  zerolog.Logger
	Metrics *telemetry.Recorder
	Sink    Sink
}

// Run is the session-scoped context passed to every mining operation. It carries the
// cooperative stop flag, the doing-task marker and the excavation direction cached
// for the current phase.
type Run struct {
	Agent   agent.Agent
	Config  config.MiningConfig
	Catalog *catalogs.Catalogs
	Session *Session
	Log     zerolog.Logger
	Metrics *telemetry.Recorder
	Tools   ToolProvider

	sink Sink

	stop       atomic.Bool
	stopMu     sync.Mutex
	stopReason string
	doingTask  atomic.Bool

	dir    agent.Vec3
	dirSet bool
	hub    agent.Vec3
	hubSet bool
}

func NewRun(opts Options) *Run {
	if opts.Agent.Clock == nil {
		opts.Agent.Clock = agent.SystemClock{}
	}
	if opts.Catalog == nil {
		opts.Catalog = catalogs.MustDefault()
	}
	now := opts.Agent.Clock.Now()
	depth := 0
	if opts.Agent.Nav != nil {
		depth = opts.Agent.Nav.Position().Y
	}
	s := New(now, depth)
	return &Run{
		Agent:   opts.Agent,
		Config:  opts.Config,
		Catalog: opts.Catalog,
		Session: s,
		Log:     opts.Logger.With().Str("session_id", s.ID()).Logger(),
		Metrics: opts.Metrics,
		sink:    opts.Sink,
	}
}

// Stop requests cooperative cancellation. Loops observe it at their next iteration
// boundary; in-flight navigate/dig calls finish or time out first.
func (r *Run) Stop(reason string) {
	r.stopMu.Lock()
	if r.stopReason == "" {
		r.stopReason = reason
	}
	r.stopMu.Unlock()
	r.stop.Store(true)
}

// StopRequested reports the stop flag and its reason.
func (r *Run) StopRequested() (string, bool) {
	if !r.stop.Load() {
		return "", false
	}
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	return r.stopReason, true
}

// ShouldStop is the per-iteration check: stop flag or cancelled context.
func (r *Run) ShouldStop(ctx context.Context) bool {
	return r.stop.Load() || ctx.Err() != nil
}

func (r *Run) SetDoingTask(v bool) { r.doingTask.Store(v) }
func (r *Run) DoingTask() bool     { return r.doingTask.Load() }

// Direction returns the excavation axis, computing it from the agent's facing on first
// use and reusing it until ResetDirection.
func (r *Run) Direction() agent.Vec3 {
	if !r.dirSet {
		r.dir = r.Agent.Nav.Facing().Horizontal()
		r.dirSet = true
	}
	return r.dir
}

func (r *Run) SetDirection(d agent.Vec3) {
	r.dir = d.Horizontal()
	r.dirSet = true
}

func (r *Run) ResetDirection() { r.dirSet = false }

func (r *Run) SetHub(p agent.Vec3) {
	r.hub = p
	r.hubSet = true
}

func (r *Run) Hub() (agent.Vec3, bool) { return r.hub, r.hubSet }

func (r *Run) Position() agent.Vec3 { return r.Agent.Nav.Position() }

func (r *Run) Now() time.Time { return r.Agent.Clock.Now() }

// Settle waits the configured delay so world state propagates after an action.
func (r *Run) Settle(ctx context.Context) error {
	return r.Agent.Clock.Sleep(ctx, r.Config.Settle())
}

// InventoryFull applies the configured free-slot threshold.
func (r *Run) InventoryFull() bool {
	return r.Agent.Inv.EmptySlotCount() <= r.Config.InventoryFullThreshold
}

// Count returns how many held items satisfy ingredient (an item name or "#tag").
func (r *Run) Count(ingredient string) int {
	return agent.Count(r.Agent.Inv, func(item string) bool { return r.Catalog.Matches(ingredient, item) })
}

// SetMode updates the session mode and journals the transition.
func (r *Run) SetMode(m Mode) {
	if r.Session.Mode() == m {
		return
	}
	r.Session.SetMode(m)
	r.Log.Debug().Stringer("mode", m).Msg("mode")
	r.emit(EventMode, m.String(), nil)
}

// TrackDepth copies the agent's Y into the session.
func (r *Run) TrackDepth() int {
	y := r.Position().Y
	r.Session.SetDepth(y)
	return y
}

// RecordBlock counts an excavated block in the session and metrics.
func (r *Run) RecordBlock(ctx context.Context, block string, ore bool) {
	r.Session.RecordBlock(ore, r.Now())
	r.Metrics.BlockMined(ctx, block, ore)
}

// Announce sends a progress message to the outbound channel, the log and the journal.
func (r *Run) Announce(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Log.Info().Msg(msg)
	if r.Agent.Announcer != nil {
		r.Agent.Announcer.Announce(msg)
	}
	r.emit(EventAnnounce, msg, nil)
}

// Phase journals a phase transition.
func (r *Run) Phase(name string, fields map[string]any) {
	r.Log.Info().Str("phase", name).Fields(fields).Msg("phase")
	r.emit(EventPhase, name, fields)
}

// Emit journals an arbitrary event.
func (r *Run) Emit(kind, msg string, fields map[string]any) { r.emit(kind, msg, fields) }

func (r *Run) emit(kind, msg string, fields map[string]any) {
	if r.sink == nil {
		return
	}
	r.sink.Record(Event{
		Time:      r.Now(),
		SessionID: r.Session.ID(),
		Kind:      kind,
		Message:   msg,
		Fields:    fields,
	})
}

// Terminate ends the session once, announcing and journalling the reason.
func (r *Run) Terminate(reason string) bool {
	if !r.Session.Terminate(reason, r.Now()) {
		return false
	}
	st := r.Session.Status()
	r.emit(EventTerminate, reason, map[string]any{
		"mined_blocks": st.MinedBlocks,
		"mined_ores":   st.MinedOres,
		"depth":        st.CurrentDepth,
	})
	return true
}
