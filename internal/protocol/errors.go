package protocol

import (
	"errors"
	"fmt"

	"voxelminer.ai/internal/agent"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Session routing.
	ErrWorldBusy   = "E_WORLD_BUSY"
	ErrWorldDenied = "E_WORLD_DENIED"

	// Action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrAborted       = "E_ABORTED"
	ErrTimeout       = "E_TIMEOUT"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrBlocked       = "E_BLOCKED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrWorldDenied:     {},
	ErrBadRequest:      {},
	ErrAborted:         {},
	ErrTimeout:         {},
	ErrNoResource:      {},
	ErrInvalidTarget:   {},
	ErrBlocked:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

var codeSentinels = []struct {
	code string
	err  error
}{
	{ErrAborted, agent.ErrAborted},
	{ErrTimeout, agent.ErrTimeout},
	{ErrNoResource, agent.ErrNoResource},
	{ErrInvalidTarget, agent.ErrInvalidTarget},
	{ErrBlocked, agent.ErrBlocked},
}

// CodeError is a failure reported by the remote world. It unwraps to the matching
// agent sentinel so callers can use errors.Is across transports.
type CodeError struct {
	Code    string
	Message string
}

func (e *CodeError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodeError) Unwrap() error {
	for _, cs := range codeSentinels {
		if cs.code == e.Code {
			return cs.err
		}
	}
	return nil
}

// ErrorFor turns a wire code into an error; an empty code is success.
func ErrorFor(code, message string) error {
	if code == "" {
		return nil
	}
	return &CodeError{Code: code, Message: message}
}

// CodeFor maps an action error to its wire code. Errors outside the agent sentinels
// become E_INTERNAL.
func CodeFor(err error) string {
	if err == nil {
		return ""
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	for _, cs := range codeSentinels {
		if errors.Is(err, cs.err) {
			return cs.code
		}
	}
	return ErrInternal
}
