// Package history keeps a queryable sqlite index of finished sessions and their furnace
// jobs. The journal stays the source of truth; the index can be rebuilt from outcomes.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/mining/automine"
)

const schemaVersion = "1"

type Store struct {
	db *sql.DB
}

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason"`
	Tier        string    `json:"tier"`
	Cycles      int       `json:"cycles"`
	MinedBlocks int       `json:"mined_blocks"`
	MinedOres   int       `json:"mined_ores"`
	Depth       int       `json:"depth"`
	Error       string    `json:"error,omitempty"`
}

// JobRecord is one furnace job of a session.
type JobRecord struct {
	SessionID string `json:"session_id"`
	JobID     int    `json:"job_id"`
	Kind      string `json:"kind"`
	Input     string `json:"input"`
	Amount    int    `json:"amount"`
	Status    string `json:"status"`
	Result    int    `json:"result"`
	Reason    string `json:"reason,omitempty"`
}

// Totals aggregates every recorded session.
type Totals struct {
	Sessions    int `json:"sessions"`
	Succeeded   int `json:"succeeded"`
	MinedBlocks int `json:"mined_blocks"`
	MinedOres   int `json:"mined_ores"`
	Jobs        int `json:"jobs"`
}

// FromOutcome converts a controller outcome; runErr is the error Run returned.
func FromOutcome(out automine.Outcome, runErr error) (SessionRecord, []JobRecord) {
	st := out.Status
	rec := SessionRecord{
		ID:          out.SessionID,
		StartedAt:   st.StartedAt,
		EndedAt:     st.EndedAt,
		Success:     out.Success,
		Reason:      out.Reason,
		Tier:        out.Tier,
		Cycles:      out.Cycles,
		MinedBlocks: st.MinedBlocks,
		MinedOres:   st.MinedOres,
		Depth:       st.CurrentDepth,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	jobs := make([]JobRecord, 0, len(out.Jobs))
	for _, j := range out.Jobs {
		jobs = append(jobs, JobRecord{
			SessionID: out.SessionID,
			JobID:     j.ID,
			Kind:      string(j.Kind),
			Input:     j.Input,
			Amount:    j.Amount,
			Status:    string(j.Status),
			Result:    j.Result,
			Reason:    j.Reason,
		})
	}
	return rec, jobs
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			success INTEGER NOT NULL,
			reason TEXT NOT NULL,
			tier TEXT NOT NULL,
			cycles INTEGER NOT NULL,
			mined_blocks INTEGER NOT NULL,
			mined_ores INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			error TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);`,
		`CREATE TABLE IF NOT EXISTS furnace_jobs (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			job_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			input TEXT NOT NULL,
			amount INTEGER NOT NULL,
			status TEXT NOT NULL,
			result INTEGER NOT NULL,
			reason TEXT,
			PRIMARY KEY (session_id, job_id)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertCatalogs remembers which catalog digests sessions were planned against.
func (s *Store) UpsertCatalogs(ctx context.Context, cat *catalogs.Catalogs) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	rows := []struct{ name, digest string }{
		{"blocks", cat.Blocks.DefsDigest},
		{"items", cat.Items.DefsDigest},
		{"recipes", cat.Recipes.Digest},
	}
	for _, r := range rows {
		if r.digest == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO catalogs(name,digest,updated_at) VALUES(?,?,?)`, r.name, r.digest, now); err != nil {
			return err
		}
	}
	return nil
}

// Record stores a session and replaces its furnace jobs in one transaction.
func (s *Store) Record(ctx context.Context, rec SessionRecord, jobs []JobRecord) error {
	if rec.ID == "" {
		return errors.New("session record without id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO sessions(id,started_at,ended_at,success,reason,tier,cycles,mined_blocks,mined_ores,depth,error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, formatTime(rec.StartedAt), formatTime(rec.EndedAt), rec.Success, rec.Reason, rec.Tier,
		rec.Cycles, rec.MinedBlocks, rec.MinedOres, rec.Depth, nullString(rec.Error))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM furnace_jobs WHERE session_id = ?`, rec.ID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO furnace_jobs(session_id,job_id,kind,input,amount,status,result,reason) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, j := range jobs {
		if _, err := stmt.ExecContext(ctx, rec.ID, j.JobID, j.Kind, j.Input, j.Amount, j.Status, j.Result, nullString(j.Reason)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Sessions lists the most recent sessions first; limit <= 0 lists all.
func (s *Store) Sessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	q := `SELECT id,started_at,ended_at,success,reason,tier,cycles,mined_blocks,mined_ores,depth,error
		FROM sessions ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Session looks up one session by id.
func (s *Store) Session(ctx context.Context, id string) (SessionRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,started_at,ended_at,success,reason,tier,cycles,mined_blocks,mined_ores,depth,error
		FROM sessions WHERE id = ?`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, err
	}
	return rec, true, nil
}

// Jobs lists furnace jobs in queue order; an empty sessionID lists every session's jobs.
func (s *Store) Jobs(ctx context.Context, sessionID string) ([]JobRecord, error) {
	q := `SELECT session_id,job_id,kind,input,amount,status,result,reason FROM furnace_jobs`
	args := []any{}
	if sessionID != "" {
		q += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY session_id, job_id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JobRecord
	for rows.Next() {
		var (
			j      JobRecord
			reason sql.NullString
		)
		if err := rows.Scan(&j.SessionID, &j.JobID, &j.Kind, &j.Input, &j.Amount, &j.Status, &j.Result, &reason); err != nil {
			return nil, err
		}
		j.Reason = reason.String
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(success),0), COALESCE(SUM(mined_blocks),0), COALESCE(SUM(mined_ores),0) FROM sessions`).
		Scan(&t.Sessions, &t.Succeeded, &t.MinedBlocks, &t.MinedOres)
	if err != nil {
		return t, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM furnace_jobs`).Scan(&t.Jobs)
	return t, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (SessionRecord, error) {
	var (
		rec            SessionRecord
		started, ended string
		errText        sql.NullString
	)
	if err := sc.Scan(&rec.ID, &started, &ended, &rec.Success, &rec.Reason, &rec.Tier, &rec.Cycles,
		&rec.MinedBlocks, &rec.MinedOres, &rec.Depth, &errText); err != nil {
		return rec, err
	}
	rec.StartedAt = parseTime(started)
	rec.EndedAt = parseTime(ended)
	rec.Error = errText.String
	return rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
