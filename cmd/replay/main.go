package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/persistence/journal"
)

func main() {
	var (
		dir       = flag.String("journal", "./data/journal", "journal directory containing session-*.jsonl.zst")
		sessionID = flag.String("session", "", "only events of this session (optional)")
		kinds     = flag.String("kinds", "", "comma-separated event kinds (optional)")
		since     = flag.String("since", "", "RFC3339 start time (optional)")
		archive   = flag.String("archive", "", "read an archived session instead: its id or its directory")
		asJSON    = flag.Bool("json", false, "print raw JSON lines")
		summary   = flag.Bool("summary", false, "print per-session summaries only")
		list      = flag.Bool("list", false, "list session ids and exit")
	)
	flag.Parse()

	opts := options{dir: *dir, archive: *archive, json: *asJSON, summary: *summary}
	opts.filter.SessionID = strings.TrimSpace(*sessionID)
	if *kinds != "" {
		for _, k := range strings.Split(*kinds, ",") {
			if k = strings.TrimSpace(k); k != "" {
				opts.filter.Kinds = append(opts.filter.Kinds, k)
			}
		}
	}
	if *since != "" {
		t, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -since:", err)
			os.Exit(2)
		}
		opts.filter.Since = t
	}

	if *list {
		ids, err := journal.Sessions(*dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list sessions:", err)
			os.Exit(1)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	if err := replay(os.Stdout, opts); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

type options struct {
	dir     string
	archive string
	filter  journal.Filter
	json    bool
	summary bool
}

// sessionSummary folds the events of one session.
type sessionSummary struct {
	id      string
	first   time.Time
	last    time.Time
	events  int
	phases  []string
	jobs    int
	reason  string
	byKind  map[string]int
	ordinal int
}

func replay(out io.Writer, opts options) error {
	sums := map[string]*sessionSummary{}
	enc := json.NewEncoder(out)
	visit := func(ev session.Event) error {
		if opts.summary {
			fold(sums, ev)
			return nil
		}
		if opts.json {
			return enc.Encode(ev)
		}
		_, err := fmt.Fprintln(out, formatEvent(ev))
		return err
	}

	var err error
	if opts.archive != "" {
		err = readArchive(opts, visit)
	} else {
		files, ferr := journal.Files(opts.dir)
		if ferr != nil {
			return ferr
		}
		if len(files) == 0 {
			return fmt.Errorf("no journal files found in %s", opts.dir)
		}
		err = journal.Read(opts.dir, opts.filter, visit)
	}
	if err != nil {
		return err
	}
	if opts.summary {
		printSummaries(out, sums)
	}
	return nil
}

// readArchive streams one archived session; the filter's kinds and start time still
// apply.
func readArchive(opts options, fn func(session.Event) error) error {
	path := opts.archive
	if !strings.ContainsRune(path, os.PathSeparator) {
		path = filepath.Join(opts.dir, "archives", "session_"+path)
	}
	f := opts.filter
	f.SessionID = ""
	return journal.ReadFile(filepath.Join(path, "events.jsonl.zst"), func(ev session.Event) error {
		if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, ev.Kind) {
			return nil
		}
		if !f.Since.IsZero() && ev.Time.Before(f.Since) {
			return nil
		}
		return fn(ev)
	})
}

func formatEvent(ev session.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-8s %-11s %s", ev.Time.UTC().Format(time.RFC3339), short(ev.SessionID), ev.Kind, ev.Message)
	if len(ev.Fields) > 0 {
		keys := make([]string, 0, len(ev.Fields))
		for k := range ev.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, ev.Fields[k])
		}
	}
	return b.String()
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func fold(sums map[string]*sessionSummary, ev session.Event) {
	s, ok := sums[ev.SessionID]
	if !ok {
		s = &sessionSummary{id: ev.SessionID, first: ev.Time, byKind: map[string]int{}, ordinal: len(sums)}
		sums[ev.SessionID] = s
	}
	s.events++
	s.last = ev.Time
	s.byKind[ev.Kind]++
	switch ev.Kind {
	case session.EventPhase:
		s.phases = append(s.phases, ev.Message)
	case session.EventJob:
		s.jobs++
	case session.EventTerminate:
		s.reason = ev.Message
	}
}

func printSummaries(out io.Writer, sums map[string]*sessionSummary) {
	list := make([]*sessionSummary, 0, len(sums))
	for _, s := range sums {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ordinal < list[j].ordinal })
	for _, s := range list {
		reason := s.reason
		if reason == "" {
			reason = "(running)"
		}
		fmt.Fprintf(out, "session=%s events=%d duration=%s reason=%s phases=%s job_events=%d\n",
			s.id, s.events, s.last.Sub(s.first).Round(time.Second), reason, strings.Join(s.phases, ">"), s.jobs)
	}
}
