package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"voxelminer.ai/internal/persistence/history"
	"voxelminer.ai/internal/persistence/journal"
)

var errUsage = errors.New("bad usage")

func openStore(fs *flag.FlagSet, args []string) (*history.Store, error) {
	dbPath := fs.String("db", "./data/history.db", "history sqlite path")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if _, err := os.Stat(*dbPath); err != nil {
		return nil, fmt.Errorf("history db: %w", err)
	}
	return history.Open(*dbPath)
}

func sessionsCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "result limit")
	failed := fs.Bool("failed", false, "only unsuccessful sessions")
	store, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Sessions(context.Background(), *limit)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if *failed && r.Success {
			continue
		}
		printJSON(out, r)
	}
	return nil
}

func sessionCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("session", flag.ContinueOnError)
	id := fs.String("id", "", "session id (required)")
	store, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()
	if strings.TrimSpace(*id) == "" {
		return fmt.Errorf("missing -id: %w", errUsage)
	}

	ctx := context.Background()
	rec, ok, err := store.Session(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s not found", *id)
	}
	jobs, err := store.Jobs(ctx, *id)
	if err != nil {
		return err
	}
	printJSON(out, struct {
		history.SessionRecord
		Jobs []history.JobRecord `json:"jobs"`
	}{rec, jobs})
	return nil
}

func jobsCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	id := fs.String("session", "", "session id (default: the latest session)")
	status := fs.String("status", "", "only jobs with this status (optional)")
	store, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	sessionID := strings.TrimSpace(*id)
	if sessionID == "" {
		recs, err := store.Sessions(ctx, 1)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return errors.New("no sessions recorded")
		}
		sessionID = recs[0].ID
	}
	jobs, err := store.Jobs(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if *status != "" && j.Status != *status {
			continue
		}
		printJSON(out, j)
	}
	return nil
}

func totalsCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("totals", flag.ContinueOnError)
	store, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()
	t, err := store.Totals(context.Background())
	if err != nil {
		return err
	}
	printJSON(out, t)
	return nil
}

// archivesCmd prints the meta.json of every archived session, oldest first.
func archivesCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("archives", flag.ContinueOnError)
	dir := fs.String("journal", "./data/journal", "journal directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths, err := filepath.Glob(filepath.Join(*dir, "archives", "session_*", "meta.json"))
	if err != nil {
		return err
	}
	var metas []journal.ArchiveMeta
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		var m journal.ArchiveMeta
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].First.Before(metas[j].First) })
	for _, m := range metas {
		printJSON(out, m)
	}
	return nil
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
