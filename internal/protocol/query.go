package protocol

// Query kinds.
const (
	QueryBlock     = "BLOCK"
	QueryNearest   = "NEAREST"
	QueryEntities  = "ENTITIES"
	QueryContainer = "CONTAINER"
)

// DefaultNearestLimit caps NEAREST answers when the query leaves Limit unset.
const DefaultNearestLimit = 16

// QUERY (client -> server). Queries are answered immediately and never move the agent.
//
// BLOCK reads Pos. NEAREST returns up to Limit blocks whose name is in Names within
// MaxDistance of Pos, nearest first. ENTITIES lists entities within Radius of Pos.
// CONTAINER opens the station at Pos (if not already open) and returns its slots.
type QueryMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id"`
	Kind            string   `json:"kind"`
	Pos             [3]int   `json:"pos"`
	Names           []string `json:"names,omitempty"`
	MaxDistance     int      `json:"max_distance,omitempty"`
	Limit           int      `json:"limit,omitempty"`
	Radius          float64  `json:"radius,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	ReqID           string        `json:"req_id"`
	Code            string        `json:"code,omitempty"`
	Message         string        `json:"message,omitempty"`
	Blocks          []BlockObs    `json:"blocks,omitempty"`
	Entities        []EntityObs   `json:"entities,omitempty"`
	Container       *ContainerObs `json:"container,omitempty"`
}

// BlockObs is one cell. Loaded is false for cells outside the generated world.
type BlockObs struct {
	Pos    [3]int `json:"pos"`
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
}

type EntityObs struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Pos   [3]int `json:"pos"`
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}

type ContainerObs struct {
	Pos     [3]int    `json:"pos"`
	Input   ItemStack `json:"input"`
	Fuel    ItemStack `json:"fuel"`
	Output  ItemStack `json:"output"`
	Burning bool      `json:"burning"`
}
