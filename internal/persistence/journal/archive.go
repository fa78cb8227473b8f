package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelminer.ai/internal/mining/session"
)

// ArchiveMeta describes one archived session.
type ArchiveMeta struct {
	SessionID string    `json:"session_id"`
	Events    int       `json:"events"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt string    `json:"created_at"`
}

// ArchiveSession copies the events of one session out of the hourly files into
// <dir>/archives/session_<id>/events.jsonl.zst with a meta.json beside it. It returns the
// archive directory.
func ArchiveSession(dir, sessionID string) (string, ArchiveMeta, error) {
	meta := ArchiveMeta{SessionID: sessionID}
	var events []session.Event
	err := Read(dir, Filter{SessionID: sessionID}, func(ev session.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return "", meta, err
	}
	if len(events) == 0 {
		return "", meta, fmt.Errorf("session %s: no journal events", sessionID)
	}

	archiveDir := filepath.Join(dir, "archives", "session_"+sessionID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", meta, err
	}
	if err := writeEvents(filepath.Join(archiveDir, "events.jsonl.zst"), events); err != nil {
		return "", meta, err
	}

	meta.Events = len(events)
	meta.First = events[0].Time
	meta.Last = events[len(events)-1].Time
	for _, ev := range events {
		if ev.Kind == session.EventTerminate {
			meta.Reason = ev.Message
		}
	}
	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}
	return archiveDir, meta, nil
}

func writeEvents(path string, events []session.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	je := json.NewEncoder(enc)
	for _, ev := range events {
		if err := je.Encode(ev); err != nil {
			_ = enc.Close()
			return err
		}
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}
