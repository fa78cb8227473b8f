package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/mining/miningtest"
	"voxelminer.ai/internal/protocol"
	"voxelminer.ai/internal/transport/ws"
	"voxelminer.ai/internal/transport/wsclient"
)

func TestReportDescribesBodyAndFinds(t *testing.T) {
	w := miningtest.Flat(t)
	w.Give("oak_log", 3)
	w.SetBlock(agent.V(3, miningtest.Surface, 0), "iron_ore")
	srv := httptest.NewServer(ws.NewServer(ws.Options{
		Agent:   w.Agent(),
		Catalog: w.Catalog(),
		Params:  protocol.WorldParams{Seed: 9, ObsEveryMS: 20},
		Logger:  zerolog.Nop(),
	}).Handler())
	defer srv.Close()

	client, err := wsclient.Dial(context.Background(), wsclient.Options{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		AgentName:      "scout",
		Logger:         zerolog.Nop(),
		RequestTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	var out bytes.Buffer
	report(&out, client, []string{"iron_ore", "diamond_ore"}, 8)
	got := out.String()
	require.Contains(t, got, "seed=9")
	require.Contains(t, got, "pos=(0,65,0)")
	require.Contains(t, got, "oak_log")
	require.Contains(t, got, "standing on grass_block")
	require.Contains(t, got, "iron_ore: (3,64,0)")
	require.Contains(t, got, "diamond_ore: none within 8")
}
