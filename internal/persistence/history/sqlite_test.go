package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/mining/automine"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/mining/smelting"
)

func open(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func outcome(id string, started time.Time, success bool) automine.Outcome {
	return automine.Outcome{
		SessionID: id,
		Success:   success,
		Reason:    automine.ReasonInventoryFull,
		Cycles:    7,
		Tier:      "iron",
		Status: session.Status{
			ID:           id,
			StartedAt:    started,
			EndedAt:      started.Add(10 * time.Minute),
			CurrentDepth: 12,
			MinedBlocks:  140,
			MinedOres:    9,
			Terminated:   true,
		},
		Jobs: []smelting.Job{
			{ID: 1, Kind: smelting.KindCharcoal, Input: "oak_log", Amount: 1, Status: smelting.StatusDone, Result: 1},
			{ID: 2, Kind: smelting.KindSmelt, Input: "raw_iron", Amount: 3, Status: smelting.StatusFailed, Reason: "no fuel"},
		},
	}
}

func TestRecordAndQuerySessions(t *testing.T) {
	s, _ := open(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	rec, jobs := FromOutcome(outcome("a", t0, true), nil)
	require.NoError(t, s.Record(ctx, rec, jobs))
	rec, jobs = FromOutcome(outcome("b", t0.Add(time.Hour), false), errors.New("session stopped: user"))
	require.NoError(t, s.Record(ctx, rec, jobs))

	list, err := s.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID, "newest first")
	require.False(t, list[0].Success)
	require.Equal(t, "session stopped: user", list[0].Error)
	require.Equal(t, t0.Add(time.Hour), list[0].StartedAt)

	one, err := s.Sessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)

	got, ok, err := s.Session(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Success)
	require.Equal(t, 140, got.MinedBlocks)
	require.Equal(t, 12, got.Depth)
	require.Equal(t, "iron", got.Tier)
	require.Empty(t, got.Error)

	_, ok, err = s.Session(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	require.Equal(t, Totals{Sessions: 2, Succeeded: 1, MinedBlocks: 280, MinedOres: 18, Jobs: 4}, totals)
}

func TestRecordReplacesJobs(t *testing.T) {
	s, _ := open(t)
	ctx := context.Background()
	rec, jobs := FromOutcome(outcome("a", time.Now(), true), nil)
	require.NoError(t, s.Record(ctx, rec, jobs))
	require.NoError(t, s.Record(ctx, rec, jobs[:1]))

	got, err := s.Jobs(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, JobRecord{SessionID: "a", JobID: 1, Kind: "charcoal", Input: "oak_log", Amount: 1, Status: "done", Result: 1}, got[0])

	all, err := s.Jobs(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.Error(t, s.Record(ctx, SessionRecord{}, nil))
}

func TestFailedJobReasonSurvives(t *testing.T) {
	s, _ := open(t)
	ctx := context.Background()
	rec, jobs := FromOutcome(outcome("a", time.Now(), true), nil)
	require.NoError(t, s.Record(ctx, rec, jobs))
	got, err := s.Jobs(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "no fuel", got[1].Reason)
	require.Equal(t, "failed", got[1].Status)
}

func TestCatalogDigestsAndSchemaVersion(t *testing.T) {
	s, path := open(t)
	require.NoError(t, s.UpsertCatalogs(context.Background(), catalogs.MustDefault()))
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var version string
	require.NoError(t, db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&version))
	require.Equal(t, schemaVersion, version)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n))
	require.Equal(t, 3, n)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
