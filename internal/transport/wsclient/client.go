// Package wsclient implements the agent collaborator interfaces against a remote world
// speaking internal/protocol over websocket.
//
// Every action becomes a task whose completion arrives as an event in a later OBS; world
// reads are QUERY/RESULT round trips. Position and inventory come from the latest OBS,
// which the server always sends before the event of the task that changed them.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/protocol"
)

var (
	ErrHandshake = errors.New("websocket handshake failed")
	ErrClosed    = errors.New("websocket connection closed")
)

const (
	defaultRequestTimeout = 10 * time.Second
	writeTimeout          = 5 * time.Second
)

type Options struct {
	URL       string
	AgentName string
	Token     string
	Catalog   *catalogs.Catalogs
	Logger    zerolog.Logger
	// Clock defaults to the wall clock.
	Clock agent.Clock
	// RequestTimeout bounds queries and every task except MOVE_TO, which uses the
	// navigation timeout of the call.
	RequestTimeout time.Duration
	Dialer         *websocket.Dialer
}

type Client struct {
	opts    Options
	log     zerolog.Logger
	conn    *websocket.Conn
	welcome protocol.WelcomeMsg

	writeMu sync.Mutex

	mu       sync.Mutex
	obs      protocol.ObsMsg
	obsReady chan struct{}
	tasks    map[string]chan protocol.Event
	queries  map[string]chan protocol.ResultMsg

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects, performs the HELLO/WELCOME handshake and waits for the first OBS.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Catalog == nil {
		opts.Catalog = catalogs.MustDefault()
	}
	if opts.Clock == nil {
		opts.Clock = agent.SystemClock{}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.AgentName == "" {
		opts.AgentName = "miner"
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	c := &Client{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "wsclient").Logger(),
		conn:     conn,
		obsReady: make(chan struct{}),
		tasks:    map[string]chan protocol.Event{},
		queries:  map[string]chan protocol.ResultMsg{},
		done:     make(chan struct{}),
	}
	if err := c.handshake(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go c.readLoop()

	select {
	case <-c.obsReady:
		return c, nil
	case <-c.done:
		return nil, fmt.Errorf("%w: %w", ErrHandshake, c.Err())
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}
}

func (c *Client) handshake(ctx context.Context) error {
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       c.opts.AgentName,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 32},
	}
	if c.opts.Token != "" {
		hello.Auth = &protocol.HelloAuth{Token: c.opts.Token}
	}
	if err := c.writeJSON(hello); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	deadline := time.Now().Add(c.opts.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) && protocol.IsKnownCode(ce.Text) {
			return fmt.Errorf("%w: %w", ErrHandshake, protocol.ErrorFor(ce.Text, "refused by server"))
		}
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeWelcome {
		return fmt.Errorf("%w: expected WELCOME, got %q", ErrHandshake, base.Type)
	}
	if err := json.Unmarshal(msg, &c.welcome); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if c.welcome.ProtocolVersion != protocol.Version {
		return fmt.Errorf("%w: server speaks protocol %s", ErrHandshake, c.welcome.ProtocolVersion)
	}
	cat := c.opts.Catalog
	if c.welcome.Catalogs.RecipesDigest != cat.Recipes.Digest || c.welcome.Catalogs.BlocksDigest != cat.Blocks.DefsDigest {
		c.log.Warn().Msg("server catalog differs from the local one; plans may be rejected")
	}
	c.log.Info().Str("agent_id", c.welcome.AgentID).Str("session_id", c.welcome.SessionID).Msg("connected")
	return nil
}

func (c *Client) readLoop() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			c.log.Debug().Err(err).Msg("bad message")
			continue
		}
		switch base.Type {
		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				c.log.Warn().Err(err).Msg("bad OBS")
				continue
			}
			c.observe(obs)
		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				c.log.Warn().Err(err).Msg("bad RESULT")
				continue
			}
			c.mu.Lock()
			ch := c.queries[res.ReqID]
			delete(c.queries, res.ReqID)
			c.mu.Unlock()
			if ch != nil {
				ch <- res
			}
		}
	}
}

func (c *Client) observe(obs protocol.ObsMsg) {
	c.mu.Lock()
	first := c.obs.Type == ""
	c.obs = obs
	var ready []func()
	for _, ev := range obs.Events {
		if ch := c.tasks[ev.TaskID]; ch != nil {
			delete(c.tasks, ev.TaskID)
			ready = append(ready, func() { ch <- ev })
		}
	}
	c.mu.Unlock()
	if first {
		close(c.obsReady)
	}
	for _, f := range ready {
		f()
	}
}

func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// Agent bundles the client as the collaborators of the remote body.
func (c *Client) Agent() agent.Agent {
	return agent.Agent{World: c, Nav: c, Act: c, Inv: c, Announcer: c, Clock: c.opts.Clock}
}

func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.fail(ErrClosed)
	return err
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return ErrClosed
}

// query sends q and waits for its RESULT. A RESULT with a code becomes an error.
func (c *Client) query(ctx context.Context, q protocol.QueryMsg) (protocol.ResultMsg, error) {
	q.Type, q.ProtocolVersion = protocol.TypeQuery, protocol.Version
	q.ReqID = "Q_" + uuid.NewString()
	ch := make(chan protocol.ResultMsg, 1)
	c.mu.Lock()
	c.queries[q.ReqID] = ch
	c.mu.Unlock()
	forget := func() {
		c.mu.Lock()
		delete(c.queries, q.ReqID)
		c.mu.Unlock()
	}
	if err := c.writeJSON(q); err != nil {
		forget()
		return protocol.ResultMsg{}, fmt.Errorf("%w: %w", ErrClosed, err)
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res, protocol.ErrorFor(res.Code, res.Message)
	case <-ctx.Done():
		forget()
		return protocol.ResultMsg{}, ctx.Err()
	case <-timer.C:
		forget()
		return protocol.ResultMsg{}, fmt.Errorf("query %s: %w", q.Kind, agent.ErrTimeout)
	case <-c.done:
		return protocol.ResultMsg{}, c.closedErr()
	}
}

// task submits t and waits for its completion event. On timeout or cancellation the
// server is asked to drop the task.
func (c *Client) task(ctx context.Context, t protocol.TaskReq, timeout time.Duration) (protocol.Event, error) {
	t.ID = "T_" + uuid.NewString()
	ch := make(chan protocol.Event, 1)
	c.mu.Lock()
	c.tasks[t.ID] = ch
	c.mu.Unlock()
	forget := func() {
		c.mu.Lock()
		delete(c.tasks, t.ID)
		c.mu.Unlock()
		_ = c.act(protocol.ActMsg{Cancel: []string{t.ID}})
	}
	if err := c.act(protocol.ActMsg{Tasks: []protocol.TaskReq{t}}); err != nil {
		c.mu.Lock()
		delete(c.tasks, t.ID)
		c.mu.Unlock()
		return protocol.Event{}, fmt.Errorf("%w: %w", ErrClosed, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-ch:
		if ev.Type == protocol.EventTaskFailed {
			return ev, fmt.Errorf("%s: %w", t.Type, protocol.ErrorFor(ev.Code, ev.Message))
		}
		return ev, nil
	case <-ctx.Done():
		forget()
		return protocol.Event{}, ctx.Err()
	case <-timer.C:
		forget()
		return protocol.Event{}, fmt.Errorf("%s after %s: %w", t.Type, timeout, agent.ErrTimeout)
	case <-c.done:
		return protocol.Event{}, c.closedErr()
	}
}

func (c *Client) act(act protocol.ActMsg) error {
	act.Type, act.ProtocolVersion = protocol.TypeAct, protocol.Version
	c.mu.Lock()
	act.Tick, act.AgentID = c.obs.Tick, c.welcome.AgentID
	c.mu.Unlock()
	return c.writeJSON(act)
}

// background derives a request context for interface methods that take none.
func (c *Client) background() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opts.RequestTimeout)
}
