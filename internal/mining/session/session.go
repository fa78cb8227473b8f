// Package session holds the state of one mining session and the run context every
// mining strategy receives in place of ambient globals.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode is what the session is currently doing.
type Mode int

const (
	ModeIdle Mode = iota
	ModeStaircase
	ModeBranchPending
	ModeBranching
	ModeVeinMining
	ModeTunneling
	ModeSmelting
	ModeStopped
)

var modeNames = [...]string{"idle", "staircase", "branch_pending", "branching", "vein_mining", "tunneling", "smelting", "stopped"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Session is the mutable record of one run. The orchestrator owns it; other goroutines
// may only read it through Status.
type Session struct {
	mu sync.RWMutex

	id             string
	mode           Mode
	startedAt      time.Time
	endedAt        time.Time
	currentDepth   int
	minedBlocks    int
	minedOres      int
	lastOreFoundAt time.Time
	abortReason    string
	terminated     bool
}

// Status is a point-in-time copy of a session.
type Status struct {
	ID             string    `json:"id"`
	Mode           Mode      `json:"mode"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at,omitempty"`
	CurrentDepth   int       `json:"current_depth"`
	MinedBlocks    int       `json:"mined_blocks"`
	MinedOres      int       `json:"mined_ores"`
	LastOreFoundAt time.Time `json:"last_ore_found_at,omitempty"`
	AbortReason    string    `json:"abort_reason,omitempty"`
	Terminated     bool      `json:"terminated"`
}

func New(now time.Time, depth int) *Session {
	return &Session{
		id:           uuid.NewString(),
		mode:         ModeIdle,
		startedAt:    now,
		currentDepth: depth,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.mode = m
}

func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) SetDepth(y int) {
	s.mu.Lock()
	s.currentDepth = y
	s.mu.Unlock()
}

// RecordBlock counts an excavated block; ore blocks also move lastOreFoundAt.
func (s *Session) RecordBlock(ore bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minedBlocks++
	if ore {
		s.minedOres++
		s.lastOreFoundAt = now
	}
}

// Terminate records why the session ended. Only the first call has effect; it reports
// whether this call was the one that ended the session.
func (s *Session) Terminate(reason string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return false
	}
	if reason == "" {
		reason = "terminated"
	}
	s.terminated = true
	s.abortReason = reason
	s.endedAt = now
	s.mode = ModeStopped
	return true
}

// AbortReason is non-empty exactly when the session has terminated.
func (s *Session) AbortReason() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.abortReason, s.terminated
}

func (s *Session) Terminated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terminated
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		ID:             s.id,
		Mode:           s.mode,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		CurrentDepth:   s.currentDepth,
		MinedBlocks:    s.minedBlocks,
		MinedOres:      s.minedOres,
		LastOreFoundAt: s.lastOreFoundAt,
		AbortReason:    s.abortReason,
		Terminated:     s.terminated,
	}
}
