// Package protocol defines the JSON messages exchanged between the mining controller and a
// remote world over websocket.
//
// The client sends HELLO and waits for WELCOME. After the handshake the server pushes OBS
// snapshots (after every completed task and on a fixed cadence), the client sends ACT with
// tasks, instants and cancels, and answers to QUERY arrive as RESULT with the same req_id.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeObs     = "OBS"
	TypeAct     = "ACT"
	TypeQuery   = "QUERY"
	TypeResult  = "RESULT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
