package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/mining/miningtest"
	"voxelminer.ai/internal/protocol"
)

// attach performs the handshake by hand and returns the raw connection.
func attach(t *testing.T) *websocket.Conn {
	t.Helper()
	w := miningtest.Flat(t)
	srv := httptest.NewServer(NewServer(Options{Agent: w.Agent(), Logger: zerolog.Nop(), Params: protocol.WorldParams{ObsEveryMS: 1000}}).Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AgentName: "scout"}))

	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, protocol.TypeWelcome, welcome.Type)
	require.True(t, strings.HasPrefix(welcome.AgentID, "scout-"))
	require.Equal(t, 1000, welcome.WorldParams.ObsEveryMS)
	return conn
}

// next reads messages until one of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string, into any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		base, err := protocol.DecodeBase(msg)
		require.NoError(t, err)
		if base.Type == typ {
			require.NoError(t, json.Unmarshal(msg, into))
			return
		}
	}
}

func TestHandshakeSendsInitialObservation(t *testing.T) {
	conn := attach(t)
	var obs protocol.ObsMsg
	next(t, conn, protocol.TypeObs, &obs)
	require.Equal(t, [3]int{0, miningtest.Surface + 1, 0}, obs.Self.Pos)
	require.Equal(t, 36, obs.EmptySlots)
	require.Empty(t, obs.Events)
}

func TestUnknownRequestsAreRejected(t *testing.T) {
	conn := attach(t)

	require.NoError(t, conn.WriteJSON(protocol.QueryMsg{Type: protocol.TypeQuery, ProtocolVersion: protocol.Version, ReqID: "Q1", Kind: "WEATHER"}))
	var res protocol.ResultMsg
	next(t, conn, protocol.TypeResult, &res)
	require.Equal(t, "Q1", res.ReqID)
	require.Equal(t, protocol.ErrBadRequest, res.Code)

	require.NoError(t, conn.WriteJSON(protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tasks:           []protocol.TaskReq{{ID: "T1", Type: "FLY"}},
	}))
	for {
		var obs protocol.ObsMsg
		next(t, conn, protocol.TypeObs, &obs)
		if len(obs.Events) == 0 {
			continue
		}
		require.Equal(t, protocol.EventTaskFailed, obs.Events[0].Type)
		require.Equal(t, "T1", obs.Events[0].TaskID)
		require.Equal(t, protocol.ErrBadRequest, obs.Events[0].Code)
		return
	}
}

func TestCancelledTaskIsNotRun(t *testing.T) {
	conn := attach(t)
	require.NoError(t, conn.WriteJSON(protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Cancel:          []string{"T9"},
	}))
	require.NoError(t, conn.WriteJSON(protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tasks:           []protocol.TaskReq{{ID: "T9", Type: protocol.TaskMine, BlockPos: [3]int{0, miningtest.Surface, -1}}},
	}))
	for {
		var obs protocol.ObsMsg
		next(t, conn, protocol.TypeObs, &obs)
		if len(obs.Events) == 0 {
			continue
		}
		require.Equal(t, protocol.ErrAborted, obs.Events[0].Code)
		return
	}
}

func TestMessagesWithOtherVersionsAreIgnored(t *testing.T) {
	conn := attach(t)
	require.NoError(t, conn.WriteJSON(protocol.QueryMsg{Type: protocol.TypeQuery, ProtocolVersion: "0.1", ReqID: "old", Kind: protocol.QueryBlock}))
	require.NoError(t, conn.WriteJSON(protocol.QueryMsg{Type: protocol.TypeQuery, ProtocolVersion: protocol.Version, ReqID: "new", Kind: protocol.QueryBlock, Pos: [3]int{0, miningtest.Surface, 0}}))
	var res protocol.ResultMsg
	next(t, conn, protocol.TypeResult, &res)
	require.Equal(t, "new", res.ReqID)
	require.Equal(t, "grass_block", res.Blocks[0].Name)
}
