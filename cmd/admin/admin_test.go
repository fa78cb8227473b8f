package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/persistence/history"
)

func seedHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, history.SessionRecord{
		ID: "s-old", StartedAt: start, EndedAt: start.Add(time.Minute),
		Reason: "no_pickaxe", Tier: "none", Error: "no pickaxe craftable",
	}, nil))
	require.NoError(t, store.Record(ctx, history.SessionRecord{
		ID: "s-new", StartedAt: start.Add(time.Hour), EndedAt: start.Add(2 * time.Hour),
		Success: true, Reason: "inventory_full", Tier: "iron", Cycles: 40, MinedBlocks: 300, MinedOres: 25, Depth: 12,
	}, []history.JobRecord{
		{SessionID: "s-new", JobID: 1, Kind: "smelt", Input: "raw_iron", Amount: 3, Status: "done", Result: 3},
		{SessionID: "s-new", JobID: 2, Kind: "charcoal", Input: "oak_log", Amount: 1, Status: "failed", Reason: "no fuel"},
	}))
	return path
}

func lines(s string) []string { return strings.Split(strings.TrimSpace(s), "\n") }

func TestSessionsAndTotals(t *testing.T) {
	db := seedHistory(t)

	var out bytes.Buffer
	require.NoError(t, sessionsCmd(&out, []string{"-db", db}))
	got := lines(out.String())
	require.Len(t, got, 2)
	require.Contains(t, got[0], `"id":"s-new"`)

	out.Reset()
	require.NoError(t, sessionsCmd(&out, []string{"-db", db, "-failed"}))
	require.Len(t, lines(out.String()), 1)
	require.Contains(t, out.String(), `"reason":"no_pickaxe"`)

	out.Reset()
	require.NoError(t, totalsCmd(&out, []string{"-db", db}))
	var totals history.Totals
	require.NoError(t, json.Unmarshal(out.Bytes(), &totals))
	require.Equal(t, 2, totals.Sessions)
	require.Equal(t, 1, totals.Succeeded)
	require.Equal(t, 2, totals.Jobs)
}

func TestSessionAndJobs(t *testing.T) {
	db := seedHistory(t)

	var out bytes.Buffer
	require.NoError(t, sessionCmd(&out, []string{"-db", db, "-id", "s-new"}))
	var detail struct {
		ID   string              `json:"id"`
		Jobs []history.JobRecord `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &detail))
	require.Equal(t, "s-new", detail.ID)
	require.Len(t, detail.Jobs, 2)

	require.ErrorContains(t, sessionCmd(&out, []string{"-db", db, "-id", "nope"}), "not found")
	require.ErrorIs(t, sessionCmd(&out, []string{"-db", db}), errUsage)

	out.Reset()
	require.NoError(t, jobsCmd(&out, []string{"-db", db, "-status", "failed"}))
	require.Len(t, lines(out.String()), 1)
	require.Contains(t, out.String(), `"reason":"no fuel"`)
}

func TestMissingDatabase(t *testing.T) {
	err := sessionsCmd(&bytes.Buffer{}, []string{"-db", filepath.Join(t.TempDir(), "absent.db")})
	require.ErrorContains(t, err, "history db")
}

func TestStatusAndStopTalkToMiner(t *testing.T) {
	var stopReason string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/v1/status":
			_, _ = rw.Write([]byte(`{"running":true}`))
		case "/admin/v1/stop":
			stopReason = r.URL.Query().Get("reason")
			rw.WriteHeader(http.StatusConflict)
			_, _ = rw.Write([]byte(`{"ok":false}`))
		default:
			http.NotFound(rw, r)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, statusCmd(&out, []string{"-url", srv.URL}))
	require.JSONEq(t, `{"running":true}`, out.String())

	err := stopCmd(&out, []string{"-url", srv.URL + "/", "-reason", "lunch break"})
	require.ErrorContains(t, err, "409")
	require.Equal(t, "lunch break", stopReason)
}
