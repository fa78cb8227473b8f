package config

import (
	"fmt"
	"time"
)

// MiningConfig is the immutable snapshot a mining session runs with. Build it with
// DefaultMining and Merge; never mutate one that a session already holds.
type MiningConfig struct {
	MaxDepth    int `yaml:"max_depth" json:"max_depth"`
	TargetDepth int `yaml:"target_depth" json:"target_depth"`
	IronDepth   int `yaml:"iron_depth" json:"iron_depth"`

	BranchLength int `yaml:"branch_length" json:"branch_length"`
	BranchCount  int `yaml:"branch_count" json:"branch_count"`
	TunnelLength int `yaml:"tunnel_length" json:"tunnel_length"`

	// InventoryFullThreshold is the number of free slots at or below which the
	// inventory counts as full.
	InventoryFullThreshold int `yaml:"inventory_full_threshold" json:"inventory_full_threshold"`
	SessionBudgetSec       int `yaml:"session_budget_sec" json:"session_budget_sec"`

	AllowedOres  []string `yaml:"allowed_ores" json:"allowed_ores"`
	PriorityOres []string `yaml:"priority_ores" json:"priority_ores"`

	SafeFallHeight    int `yaml:"safe_fall_height" json:"safe_fall_height"`
	VeinMaxBlocks     int `yaml:"vein_max_blocks" json:"vein_max_blocks"`
	MaxStaircaseSteps int `yaml:"max_staircase_steps" json:"max_staircase_steps"`
	NoOreTunnelAfter  int `yaml:"no_ore_tunnel_after" json:"no_ore_tunnel_after"`
	OreSearchRadius   int `yaml:"ore_search_radius" json:"ore_search_radius"`
	IronSearchTunnels int `yaml:"iron_search_tunnels" json:"iron_search_tunnels"`
	ProgressEvery     int `yaml:"progress_every" json:"progress_every"`

	StoneUpgradeCobblestone int `yaml:"stone_upgrade_cobblestone" json:"stone_upgrade_cobblestone"`
	IronUpgradeRaw          int `yaml:"iron_upgrade_raw" json:"iron_upgrade_raw"`

	WoodGatherAttempts int `yaml:"wood_gather_attempts" json:"wood_gather_attempts"`
	WoodSearchRadius   int `yaml:"wood_search_radius" json:"wood_search_radius"`

	SettleMs      int     `yaml:"settle_ms" json:"settle_ms"`
	NavTimeoutMs  int     `yaml:"nav_timeout_ms" json:"nav_timeout_ms"`
	DigAttempts   int     `yaml:"dig_attempts" json:"dig_attempts"`
	DigRetryMs    int     `yaml:"dig_retry_ms" json:"dig_retry_ms"`
	PickupWaitMs  int     `yaml:"pickup_wait_ms" json:"pickup_wait_ms"`
	ReachDistance float64 `yaml:"reach_distance" json:"reach_distance"`

	Furnace FurnaceConfig `yaml:"furnace" json:"furnace"`
}

type FurnaceConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	MinTimeoutSec  int `yaml:"min_timeout_sec" json:"min_timeout_sec"`
	MaxTimeoutSec  int `yaml:"max_timeout_sec" json:"max_timeout_sec"`
	PerItemSec     int `yaml:"per_item_sec" json:"per_item_sec"`
}

// DefaultPriorityOres is the scan order of the main loop, most valuable first.
var DefaultPriorityOres = []string{
	"diamond_ore", "deepslate_diamond_ore",
	"emerald_ore", "deepslate_emerald_ore",
	"redstone_ore", "deepslate_redstone_ore",
	"lapis_ore", "deepslate_lapis_ore",
	"gold_ore", "deepslate_gold_ore",
	"iron_ore", "deepslate_iron_ore",
	"copper_ore", "deepslate_copper_ore",
	"coal_ore", "deepslate_coal_ore",
}

func DefaultMining() MiningConfig {
	return MiningConfig{
		MaxDepth:                -58,
		TargetDepth:             12,
		IronDepth:               16,
		BranchLength:            16,
		BranchCount:             4,
		TunnelLength:            24,
		InventoryFullThreshold:  2,
		SessionBudgetSec:        1800,
		PriorityOres:            append([]string(nil), DefaultPriorityOres...),
		SafeFallHeight:          3,
		VeinMaxBlocks:           20,
		MaxStaircaseSteps:       160,
		NoOreTunnelAfter:        3,
		OreSearchRadius:         32,
		IronSearchTunnels:       6,
		ProgressEvery:           5,
		StoneUpgradeCobblestone: 3,
		IronUpgradeRaw:          3,
		WoodGatherAttempts:      8,
		WoodSearchRadius:        48,
		SettleMs:                250,
		NavTimeoutMs:            20000,
		DigAttempts:             3,
		DigRetryMs:              300,
		PickupWaitMs:            800,
		ReachDistance:           4.5,
		Furnace: FurnaceConfig{
			PollIntervalMs: 1500,
			MinTimeoutSec:  60,
			MaxTimeoutSec:  180,
			PerItemSec:     12,
		},
	}
}

func (c MiningConfig) Settle() time.Duration     { return ms(c.SettleMs) }
func (c MiningConfig) NavTimeout() time.Duration { return ms(c.NavTimeoutMs) }
func (c MiningConfig) DigRetry() time.Duration   { return ms(c.DigRetryMs) }
func (c MiningConfig) PickupWait() time.Duration { return ms(c.PickupWaitMs) }
func (c MiningConfig) SessionBudget() time.Duration {
	return time.Duration(c.SessionBudgetSec) * time.Second
}

func (f FurnaceConfig) PollInterval() time.Duration { return ms(f.PollIntervalMs) }

// Timeout scales the polling budget with the job size, clamped to [min, max].
func (f FurnaceConfig) Timeout(amount int) time.Duration {
	sec := f.PerItemSec * amount
	if sec < f.MinTimeoutSec {
		sec = f.MinTimeoutSec
	}
	if sec > f.MaxTimeoutSec {
		sec = f.MaxTimeoutSec
	}
	return time.Duration(sec) * time.Second
}

// maxSafeFall matches the schema maximum and the hazard probe bound.
const maxSafeFall = 64

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// OreAllowed applies the allow-list; an empty list allows every ore.
func (c MiningConfig) OreAllowed(block string) bool {
	if len(c.AllowedOres) == 0 {
		return true
	}
	for _, o := range c.AllowedOres {
		if o == block {
			return true
		}
	}
	return false
}

// Validate checks cross-field constraints the schema cannot express.
func (c MiningConfig) Validate() error {
	if c.TargetDepth < c.MaxDepth {
		return fmt.Errorf("target_depth %d below max_depth %d", c.TargetDepth, c.MaxDepth)
	}
	if c.IronDepth < c.MaxDepth {
		return fmt.Errorf("iron_depth %d below max_depth %d", c.IronDepth, c.MaxDepth)
	}
	if c.SafeFallHeight < 0 || c.SafeFallHeight > maxSafeFall {
		return fmt.Errorf("safe_fall_height %d outside [0, %d]", c.SafeFallHeight, maxSafeFall)
	}
	if c.VeinMaxBlocks <= 0 {
		return fmt.Errorf("vein_max_blocks must be positive")
	}
	if c.DigAttempts <= 0 {
		return fmt.Errorf("dig_attempts must be positive")
	}
	if c.Furnace.MinTimeoutSec > c.Furnace.MaxTimeoutSec {
		return fmt.Errorf("furnace.min_timeout_sec exceeds max_timeout_sec")
	}
	return nil
}

// Overrides is the options object callers pass at session start. Nil fields keep the
// configured value.
type Overrides struct {
	MaxDepth               *int     `json:"max_depth,omitempty"`
	TargetDepth            *int     `json:"target_depth,omitempty"`
	BranchLength           *int     `json:"branch_length,omitempty"`
	BranchCount            *int     `json:"branch_count,omitempty"`
	InventoryFullThreshold *int     `json:"inventory_full_threshold,omitempty"`
	SessionBudgetSec       *int     `json:"session_budget_sec,omitempty"`
	AllowedOres            []string `json:"allowed_ores,omitempty"`
	PriorityOres           []string `json:"priority_ores,omitempty"`
	SafeFallHeight         *int     `json:"safe_fall_height,omitempty"`
}

// Merge returns a copy of c with o applied. Slices are copied so the result shares no
// backing arrays with either input.
func (c MiningConfig) Merge(o Overrides) MiningConfig {
	out := c
	setInt(&out.MaxDepth, o.MaxDepth)
	setInt(&out.TargetDepth, o.TargetDepth)
	setInt(&out.BranchLength, o.BranchLength)
	setInt(&out.BranchCount, o.BranchCount)
	setInt(&out.InventoryFullThreshold, o.InventoryFullThreshold)
	setInt(&out.SessionBudgetSec, o.SessionBudgetSec)
	setInt(&out.SafeFallHeight, o.SafeFallHeight)
	out.AllowedOres = append([]string(nil), c.AllowedOres...)
	out.PriorityOres = append([]string(nil), c.PriorityOres...)
	if o.AllowedOres != nil {
		out.AllowedOres = append([]string(nil), o.AllowedOres...)
	}
	if o.PriorityOres != nil {
		out.PriorityOres = append([]string(nil), o.PriorityOres...)
	}
	return out
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Int is a helper for building Overrides literals.
func Int(v int) *int { return &v }
