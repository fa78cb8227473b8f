// Package journal persists run events as zstd-compressed JSON lines, one file per hour,
// and reads them back for replay and archiving.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"voxelminer.ai/internal/mining/session"
)

const (
	filePrefix = "session"
	hourLayout = "2006-01-02-15"
)

// Writer appends JSONL records to <dir>/session-<hour>.jsonl.zst. Records are filed under
// the hour of their own timestamp, so simulated runs land in simulated hours.
type Writer struct {
	baseDir string
	log     zerolog.Logger

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(baseDir string, logger zerolog.Logger) *Writer {
	return &Writer{
		baseDir: baseDir,
		log:     logger.With().Str("component", "journal").Logger(),
	}
}

func (w *Writer) Dir() string { return w.baseDir }

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Record implements session.Sink. Write failures are logged and the event is dropped;
// a broken journal never stops a mining session.
func (w *Writer) Record(ev session.Event) {
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	if err := w.WriteAt(at, ev); err != nil {
		w.log.Error().Err(err).Str("kind", ev.Kind).Msg("journal write failed")
	}
}

// WriteAt appends v to the file of the hour containing at.
func (w *Writer) WriteAt(at time.Time, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := at.UTC().Format(hourLayout)
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(pathForHour(w.baseDir, hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	w.log.Debug().Str("hour", hour).Msg("journal rotated")
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func pathForHour(dir, hour string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl.zst", filePrefix, hour))
}
