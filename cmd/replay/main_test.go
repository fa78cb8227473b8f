package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/persistence/journal"
)

func writeJournal(t *testing.T, dir string) {
	t.Helper()
	w := journal.NewWriter(dir, zerolog.Nop())
	base := time.Date(2026, 3, 1, 10, 58, 0, 0, time.UTC)
	for i, ev := range []session.Event{
		{SessionID: "aaaaaaaa-1", Kind: session.EventAnnounce, Message: "auto-mine started"},
		{SessionID: "aaaaaaaa-1", Kind: session.EventPhase, Message: "baseline_pickaxe"},
		{SessionID: "bbbbbbbb-2", Kind: session.EventPhase, Message: "baseline_pickaxe"},
		{SessionID: "aaaaaaaa-1", Kind: session.EventPhase, Message: "stone_upgrade", Fields: map[string]any{"y": 60}},
		{SessionID: "aaaaaaaa-1", Kind: session.EventTerminate, Message: "budget_exceeded"},
	} {
		ev.Time = base.Add(time.Duration(i) * time.Minute)
		w.Record(ev)
	}
	require.NoError(t, w.Close())
}

func TestReplayPrintsFilteredEvents(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir)

	var out bytes.Buffer
	opts := options{dir: dir}
	opts.filter.SessionID = "aaaaaaaa-1"
	opts.filter.Kinds = []string{session.EventPhase}
	require.NoError(t, replay(&out, opts))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "baseline_pickaxe")
	require.True(t, strings.HasSuffix(lines[1], "stone_upgrade y=60"), lines[1])
}

func TestReplaySummaryAcrossHourFiles(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir)
	files, err := journal.Files(dir)
	require.NoError(t, err)
	require.Len(t, files, 2, "events span two hours")

	var out bytes.Buffer
	require.NoError(t, replay(&out, options{dir: dir, summary: true}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "session=aaaaaaaa-1 events=4 duration=4m0s reason=budget_exceeded phases=baseline_pickaxe>stone_upgrade job_events=0", lines[0])
	require.Contains(t, lines[1], "reason=(running)")
}

func TestReplayArchive(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir)
	_, _, err := journal.ArchiveSession(dir, "aaaaaaaa-1")
	require.NoError(t, err)

	var out bytes.Buffer
	opts := options{dir: dir, archive: "aaaaaaaa-1", json: true}
	opts.filter.Kinds = []string{session.EventTerminate}
	require.NoError(t, replay(&out, opts))
	require.Equal(t, 1, strings.Count(out.String(), "\n"))
	require.Contains(t, out.String(), `"message":"budget_exceeded"`)
}

func TestReplayEmptyDir(t *testing.T) {
	require.ErrorContains(t, replay(&bytes.Buffer{}, options{dir: t.TempDir()}), "no journal files")
}
