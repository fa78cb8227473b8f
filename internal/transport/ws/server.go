// Package ws serves one controlled body over the miner websocket protocol. It turns any
// agent.Agent (usually an in-memory simworld) into a remote world that
// internal/transport/wsclient can drive.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/protocol"
)

const (
	defaultObsEvery     = time.Second
	defaultMoveTimeout  = 30 * time.Second
	handshakeTimeout    = 5 * time.Second
	writeTimeout        = 5 * time.Second
	readTimeout         = 60 * time.Second
	maxQueuedTasks      = 64
	defaultOutboxLength = 8
)

type Options struct {
	Agent   agent.Agent
	Catalog *catalogs.Catalogs
	Params  protocol.WorldParams
	// Token, when set, must match HELLO auth.
	Token string
	// AdvanceClock moves the agent clock forward by the observation interval on every
	// tick. Simulated worlds need it so furnaces and drops progress while the client
	// waits in wall-clock time.
	AdvanceClock bool
	Logger       zerolog.Logger
}

// Server accepts one client at a time; later clients are refused with E_WORLD_BUSY
// until the current one disconnects.
type Server struct {
	opts Options
	log  zerolog.Logger

	upgrader websocket.Upgrader
	busy     atomic.Bool
	tick     atomic.Uint64
}

func NewServer(opts Options) *Server {
	if opts.Catalog == nil {
		opts.Catalog = catalogs.MustDefault()
	}
	if opts.Params.ObsEveryMS <= 0 {
		opts.Params.ObsEveryMS = int(defaultObsEvery / time.Millisecond)
	}
	return &Server{
		opts: opts,
		log:  opts.Logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, ok := s.readHello(conn)
		if !ok {
			return
		}
		if !s.busy.CompareAndSwap(false, true) {
			closeWith(conn, websocket.CloseTryAgainLater, protocol.ErrWorldBusy)
			return
		}
		defer s.busy.Store(false)

		agentID, out := s.welcome(conn, hello)
		if agentID == "" {
			return
		}
		log := s.log.With().Str("agent_id", agentID).Logger()
		log.Info().Str("remote", r.RemoteAddr).Msg("client attached")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		c := &session{
			s:          s,
			log:        log,
			agentID:    agentID,
			out:        out,
			done:       ctx.Done(),
			tasks:      make(chan protocol.TaskReq, maxQueuedTasks),
			running:    map[string]context.CancelFunc{},
			cancelled:  map[string]bool{},
			containers: map[[3]int]agent.Container{},
		}

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()
		go c.work(ctx)
		go c.observe(ctx, time.Duration(s.opts.Params.ObsEveryMS)*time.Millisecond)
		c.sendObs()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.ProtocolVersion != protocol.Version {
				continue
			}
			switch base.Type {
			case protocol.TypeAct:
				var act protocol.ActMsg
				if err := json.Unmarshal(msg, &act); err != nil {
					continue
				}
				c.act(ctx, act)
			case protocol.TypeQuery:
				var q protocol.QueryMsg
				if err := json.Unmarshal(msg, &q); err != nil {
					continue
				}
				c.send(c.query(ctx, q))
			}
		}

		c.closeContainers()
		log.Info().Msg("client detached")
	}
}

// readHello reads and validates HELLO, closing the connection when it is refused.
func (s *Server) readHello(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return hello, false
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return hello, false
	}
	if s.opts.Token != "" {
		token := ""
		if hello.Auth != nil {
			token = strings.TrimSpace(hello.Auth.Token)
		}
		if token != s.opts.Token {
			closeWith(conn, websocket.ClosePolicyViolation, protocol.ErrWorldDenied)
			return hello, false
		}
	}
	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}
	return hello, true
}

func (s *Server) welcome(conn *websocket.Conn, hello protocol.HelloMsg) (agentID string, out chan []byte) {
	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = defaultOutboxLength
	}
	if maxQ > maxQueuedTasks {
		maxQ = maxQueuedTasks
	}
	out = make(chan []byte, maxQ)

	agentID = hello.AgentName + "-" + uuid.NewString()[:8]
	cat := s.opts.Catalog
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		AgentID:         agentID,
		WorldParams:     s.opts.Params,
		Catalogs: protocol.CatalogDigests{
			BlocksDigest:  cat.Blocks.DefsDigest,
			ItemsDigest:   cat.Items.DefsDigest,
			RecipesDigest: cat.Recipes.Digest,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	return agentID, out
}

// session is the state of one attached client. Tasks run one at a time on the work
// goroutine; queries are answered on the reader goroutine.
type session struct {
	s       *Server
	log     zerolog.Logger
	agentID string
	out     chan []byte
	done    <-chan struct{}
	tasks   chan protocol.TaskReq

	mu         sync.Mutex
	events     []protocol.Event
	queued     []string
	running    map[string]context.CancelFunc
	cancelled  map[string]bool
	containers map[[3]int]agent.Container
}

func (c *session) act(ctx context.Context, act protocol.ActMsg) {
	ag := c.s.opts.Agent
	for _, in := range act.Instants {
		switch in.Type {
		case protocol.InstantSay:
			if ag.Announcer != nil {
				ag.Announcer.Announce(in.Text)
			}
		case protocol.InstantClose:
			c.mu.Lock()
			ct := c.containers[in.BlockPos]
			delete(c.containers, in.BlockPos)
			c.mu.Unlock()
			if ct != nil {
				_ = ct.Close()
			}
		}
	}
	for _, id := range act.Cancel {
		c.mu.Lock()
		if stop, ok := c.running[id]; ok {
			stop()
		} else {
			c.cancelled[id] = true
		}
		c.mu.Unlock()
	}
	for _, t := range act.Tasks {
		c.mu.Lock()
		c.queued = append(c.queued, t.ID)
		c.mu.Unlock()
		select {
		case c.tasks <- t:
		case <-ctx.Done():
			return
		default:
			c.finish(t.ID, protocol.Event{Type: protocol.EventTaskFailed, TaskID: t.ID, Code: protocol.ErrWorldBusy, Message: "task queue full"})
		}
	}
}

func (c *session) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-c.tasks:
			c.mu.Lock()
			skip := c.cancelled[t.ID]
			delete(c.cancelled, t.ID)
			tctx, stop := context.WithCancel(ctx)
			c.running[t.ID] = stop
			c.mu.Unlock()

			var ev protocol.Event
			if skip {
				ev = failed(t.ID, protocol.ErrAborted, "cancelled")
			} else {
				ev = c.exec(tctx, t)
				if tctx.Err() != nil && ctx.Err() == nil && ev.Type == protocol.EventTaskFailed {
					ev.Code = protocol.ErrAborted
				}
			}
			stop()
			c.mu.Lock()
			delete(c.running, t.ID)
			c.mu.Unlock()
			c.finish(t.ID, ev)
		}
	}
}

func (c *session) exec(ctx context.Context, t protocol.TaskReq) protocol.Event {
	ag := c.s.opts.Agent
	var err error
	done := protocol.Event{Type: protocol.EventTaskDone, TaskID: t.ID}
	switch t.Type {
	case protocol.TaskMoveTo:
		timeout := time.Duration(t.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			timeout = defaultMoveTimeout
		}
		if !ag.Nav.GoTo(ctx, agent.Goal{Pos: agent.FromArray(t.Target), Range: t.Tolerance}, timeout) {
			return failed(t.ID, protocol.ErrBlocked, "goal not reached")
		}
	case protocol.TaskMine:
		err = ag.Act.Dig(ctx, agent.FromArray(t.BlockPos))
	case protocol.TaskPlace:
		err = ag.Act.Place(ctx, t.ItemID, agent.FromArray(t.BlockPos), agent.FromArray(t.Face))
	case protocol.TaskEquip:
		slot := agent.Slot(t.Slot)
		if slot == "" {
			slot = agent.SlotHand
		}
		err = ag.Act.Equip(ctx, t.ItemID, slot)
	case protocol.TaskCraft:
		var station *agent.Vec3
		if t.Station != nil {
			p := agent.FromArray(*t.Station)
			station = &p
		}
		err = ag.Act.Craft(ctx, t.RecipeID, t.Count, station)
	case protocol.TaskTransfer:
		var ct agent.Container
		ct, err = c.container(ctx, t.BlockPos)
		if err != nil {
			break
		}
		slot := agent.ContainerSlot(t.Slot)
		switch t.Direction {
		case protocol.TransferPut:
			err = ct.Put(ctx, slot, t.ItemID, t.Count)
		case protocol.TransferTake:
			var got agent.ItemStack
			got, err = ct.Take(ctx, slot)
			done.Item, done.Count = got.Item, got.Count
		default:
			return failed(t.ID, protocol.ErrBadRequest, "unknown transfer direction "+t.Direction)
		}
	default:
		return failed(t.ID, protocol.ErrBadRequest, "unknown task type "+t.Type)
	}
	if err != nil {
		c.log.Debug().Err(err).Str("task", t.Type).Str("task_id", t.ID).Msg("task failed")
		return failed(t.ID, protocol.CodeFor(err), err.Error())
	}
	return done
}

func failed(id, code, msg string) protocol.Event {
	return protocol.Event{Type: protocol.EventTaskFailed, TaskID: id, Code: code, Message: msg}
}

// container returns the station opened at pos, opening it on first use.
func (c *session) container(ctx context.Context, pos [3]int) (agent.Container, error) {
	c.mu.Lock()
	ct := c.containers[pos]
	c.mu.Unlock()
	if ct != nil {
		return ct, nil
	}
	ct, err := c.s.opts.Agent.Act.OpenStation(ctx, agent.FromArray(pos))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.containers[pos] = ct
	c.mu.Unlock()
	return ct, nil
}

func (c *session) closeContainers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pos, ct := range c.containers {
		_ = ct.Close()
		delete(c.containers, pos)
	}
}

func (c *session) query(ctx context.Context, q protocol.QueryMsg) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ReqID: q.ReqID}
	w := c.s.opts.Agent.World
	pos := agent.FromArray(q.Pos)
	switch q.Kind {
	case protocol.QueryBlock:
		b, ok := w.BlockAt(pos)
		res.Blocks = []protocol.BlockObs{{Pos: q.Pos, Name: b.Name, Loaded: ok}}
	case protocol.QueryNearest:
		res.Blocks = nearest(w, pos, q)
	case protocol.QueryEntities:
		for _, e := range w.EntitiesNear(pos, q.Radius) {
			res.Entities = append(res.Entities, protocol.EntityObs{ID: e.ID, Kind: e.Kind, Pos: e.Pos.ToArray(), Item: e.Item, Count: e.Count})
		}
	case protocol.QueryContainer:
		ct, err := c.container(ctx, q.Pos)
		if err != nil {
			res.Code, res.Message = protocol.CodeFor(err), err.Error()
			break
		}
		st := ct.State()
		res.Container = &protocol.ContainerObs{
			Pos:     q.Pos,
			Input:   protocol.ItemStack(st.Input),
			Fuel:    protocol.ItemStack(st.Fuel),
			Output:  protocol.ItemStack(st.Output),
			Burning: st.Burning,
		}
	default:
		res.Code, res.Message = protocol.ErrBadRequest, "unknown query kind "+q.Kind
	}
	return res
}

// nearest collects up to q.Limit matches, nearest first, by repeated nearest-block
// searches that exclude the hits already found.
func nearest(w agent.World, from agent.Vec3, q protocol.QueryMsg) []protocol.BlockObs {
	limit := q.Limit
	if limit <= 0 {
		limit = protocol.DefaultNearestLimit
	}
	names := make(map[string]bool, len(q.Names))
	for _, n := range q.Names {
		names[n] = true
	}
	seen := map[agent.Vec3]bool{}
	var out []protocol.BlockObs
	for len(out) < limit {
		b, ok := w.FindNearestBlock(from, func(b agent.Block) bool {
			return names[b.Name] && !seen[b.Pos]
		}, q.MaxDistance)
		if !ok {
			break
		}
		seen[b.Pos] = true
		out = append(out, protocol.BlockObs{Pos: b.Pos.ToArray(), Name: b.Name, Loaded: true})
	}
	return out
}

// finish records a task completion and pushes an OBS carrying it.
func (c *session) finish(id string, ev protocol.Event) {
	c.mu.Lock()
	for i, q := range c.queued {
		if q == id {
			c.queued = append(c.queued[:i], c.queued[i+1:]...)
			break
		}
	}
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.sendObs()
}

func (c *session) observe(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if clock := c.s.opts.Agent.Clock; c.s.opts.AdvanceClock && clock != nil {
				_ = clock.Sleep(ctx, every)
			}
			c.sendObs()
		}
	}
}

func (c *session) sendObs() {
	ag := c.s.opts.Agent
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            c.s.tick.Add(1),
		AgentID:         c.agentID,
		Self: protocol.SelfObs{
			Pos:    ag.Nav.Position().ToArray(),
			Facing: ag.Nav.Facing().ToArray(),
		},
		EmptySlots: ag.Inv.EmptySlotCount(),
	}
	if held, ok := ag.Inv.HeldItem(); ok {
		obs.Self.MainHand = protocol.ItemStack(held)
	}
	for _, st := range ag.Inv.Items() {
		obs.Inventory = append(obs.Inventory, protocol.ItemStack(st))
	}
	c.mu.Lock()
	obs.Events, c.events = c.events, nil
	obs.Tasks = append([]string(nil), c.queued...)
	c.mu.Unlock()
	c.send(obs)
}

// send blocks while the outbox is full and gives up once the connection is gone.
func (c *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Msg("encode message")
		return
	}
	select {
	case c.out <- b:
	case <-c.done:
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return err
	}
	return nil
}
