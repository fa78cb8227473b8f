package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/protocol"
	"voxelminer.ai/internal/simworld"
)

func TestMuxServesHealthAndWelcome(t *testing.T) {
	cat := catalogs.MustDefault()
	w := simworld.Spawn(simworld.SpawnOptions{Catalog: cat, Seed: 3, SurfaceY: 70, Logs: 2})
	srv := httptest.NewServer(newMux(w, cat, 3, 50, "", zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       "scout",
	}))
	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, protocol.TypeWelcome, welcome.Type)
	require.Equal(t, int64(3), welcome.WorldParams.Seed)
	require.Equal(t, -64, welcome.WorldParams.MinY)
	require.Equal(t, 4.5, welcome.WorldParams.Reach)
	require.Equal(t, cat.Blocks.DefsDigest, welcome.Catalogs.BlocksDigest)
}
