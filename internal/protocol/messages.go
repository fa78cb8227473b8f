package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	AgentName       string            `json:"agent_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id,omitempty"`
	AgentID         string         `json:"agent_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	MinY  int     `json:"min_y"`
	MaxY  int     `json:"max_y"`
	Reach float64 `json:"reach,omitempty"`
	Seed  int64   `json:"seed"`
	// ObsEveryMS is the cadence of unsolicited OBS snapshots.
	ObsEveryMS int `json:"obs_every_ms,omitempty"`
}

// CatalogDigests let the client verify it plans against the same block, item and recipe
// tables the server enforces.
type CatalogDigests struct {
	BlocksDigest  string `json:"blocks_digest"`
	ItemsDigest   string `json:"items_digest"`
	RecipesDigest string `json:"recipes_digest"`
}
