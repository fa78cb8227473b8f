package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelminer.ai/internal/mining/session"
)

// ErrStop ends a Read early without error.
var ErrStop = errors.New("stop reading")

// Filter selects events; zero fields match everything.
type Filter struct {
	SessionID string
	Kinds     []string
	Since     time.Time
}

func (f Filter) match(ev session.Event) bool {
	if f.SessionID != "" && ev.SessionID != f.SessionID {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, ev.Kind) {
		return false
	}
	return f.Since.IsZero() || !ev.Time.Before(f.Since)
}

// Files lists the hourly journal files in dir, oldest first.
func Files(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, filePrefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Read streams the events of every journal file in dir that pass f, in file order.
func Read(dir string, f Filter, fn func(session.Event) error) error {
	files, err := Files(dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		err := ReadFile(path, func(ev session.Event) error {
			if !f.match(ev) {
				return nil
			}
			return fn(ev)
		})
		if errors.Is(err, ErrStop) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadFile decodes one journal file. Lines before a corrupt frame are still delivered.
func ReadFile(path string, fn func(session.Event) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var ev session.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s after %d lines: %w", filepath.Base(path), line, err)
	}
	return nil
}

// Sessions lists the distinct session ids in dir in order of first appearance.
func Sessions(dir string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	err := Read(dir, Filter{}, func(ev session.Event) error {
		if ev.SessionID != "" && !seen[ev.SessionID] {
			seen[ev.SessionID] = true
			out = append(out, ev.SessionID)
		}
		return nil
	})
	return out, err
}
