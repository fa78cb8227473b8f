package protocol

type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Self       SelfObs     `json:"self"`
	Inventory  []ItemStack `json:"inventory"`
	EmptySlots int         `json:"empty_slots"`
	Events     []Event     `json:"events"`
	// Tasks lists the ids of tasks accepted but not finished yet.
	Tasks []string `json:"tasks,omitempty"`
}

type SelfObs struct {
	Pos      [3]int    `json:"pos"`
	Facing   [3]int    `json:"facing"`
	MainHand ItemStack `json:"main_hand"`
	OffHand  ItemStack `json:"off_hand"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Event types.
const (
	EventTaskDone   = "TASK_DONE"
	EventTaskFailed = "TASK_FAILED"
)

// Event reports the completion of a task. Item/Count carry what a TRANSFER took out of a
// container.
type Event struct {
	Type    string `json:"type"`
	TaskID  string `json:"task_id"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Item    string `json:"item,omitempty"`
	Count   int    `json:"count,omitempty"`
}

type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
	Tasks           []TaskReq    `json:"tasks,omitempty"`
	Cancel          []string     `json:"cancel,omitempty"`
}

// Instant types.
const (
	InstantSay   = "SAY"
	InstantClose = "CLOSE"
)

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`

	// BlockPos names the container for CLOSE.
	BlockPos [3]int `json:"block_pos,omitempty"`
}

// Task types.
const (
	TaskMoveTo   = "MOVE_TO"
	TaskMine     = "MINE"
	TaskPlace    = "PLACE"
	TaskEquip    = "EQUIP"
	TaskCraft    = "CRAFT"
	TaskTransfer = "TRANSFER"
)

// Transfer directions.
const (
	TransferPut  = "PUT"
	TransferTake = "TAKE"
)

type TaskReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Target    [3]int  `json:"target,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`
	// TimeoutMS bounds MOVE_TO on the server side as well.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`

	BlockPos [3]int `json:"block_pos,omitempty"`
	Face     [3]int `json:"face,omitempty"`

	ItemID   string  `json:"item_id,omitempty"`
	Slot     string  `json:"slot,omitempty"`
	RecipeID string  `json:"recipe_id,omitempty"`
	Count    int     `json:"count,omitempty"`
	Station  *[3]int `json:"station,omitempty"`

	Direction string `json:"direction,omitempty"`
}
