package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseKeepsDefaultsForUnsetFields(t *testing.T) {
	cfg, err := Parse([]byte(`
agent_name: digger
mining:
  target_depth: -20
  allowed_ores: [iron_ore, diamond_ore]
  furnace:
    poll_interval_ms: 2000
`))
	require.NoError(t, err)
	require.Equal(t, "digger", cfg.AgentName)
	require.Equal(t, -20, cfg.Mining.TargetDepth)
	require.Equal(t, []string{"iron_ore", "diamond_ore"}, cfg.Mining.AllowedOres)
	require.Equal(t, 2*time.Second, cfg.Mining.Furnace.PollInterval())

	def := DefaultMining()
	require.Equal(t, def.BranchLength, cfg.Mining.BranchLength)
	require.Equal(t, def.VeinMaxBlocks, cfg.Mining.VeinMaxBlocks)
	require.Equal(t, def.Furnace.MaxTimeoutSec, cfg.Mining.Furnace.MaxTimeoutSec)
	require.Equal(t, def.PriorityOres, cfg.Mining.PriorityOres)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	_, err := Parse([]byte("mining:\n  vein_max_blocks: 0\n"))
	require.Error(t, err)

	_, err = Parse([]byte("mining:\n  unknown_knob: 1\n"))
	require.Error(t, err)

	_, err = Parse([]byte("mining:\n  allowed_ores: [stone]\n"))
	require.Error(t, err)

	_, err = Parse([]byte("log_format: xml\n"))
	require.Error(t, err)
}

func TestParseRejectsCrossFieldViolation(t *testing.T) {
	_, err := Parse([]byte("mining:\n  max_depth: 10\n  target_depth: 5\n"))
	require.ErrorContains(t, err, "target_depth")
}

func TestValidateBoundsSafeFallOverride(t *testing.T) {
	base := DefaultMining()
	require.NoError(t, base.Merge(Overrides{SafeFallHeight: Int(64)}).Validate())
	require.ErrorContains(t, base.Merge(Overrides{SafeFallHeight: Int(100)}).Validate(), "safe_fall_height")
	require.ErrorContains(t, base.Merge(Overrides{SafeFallHeight: Int(-1)}).Validate(), "safe_fall_height")
}

func TestLoadFileAndEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	p := filepath.Join(t.TempDir(), "miner.yaml")
	require.NoError(t, os.WriteFile(p, []byte("schedule: \"@every 30m\"\n"), 0o644))
	cfg, err = Load(p)
	require.NoError(t, err)
	require.Equal(t, "@every 30m", cfg.Schedule)
}

func TestMergeAppliesOnceWithoutAliasing(t *testing.T) {
	base := DefaultMining()
	merged := base.Merge(Overrides{
		TargetDepth:  Int(-30),
		BranchCount:  Int(2),
		AllowedOres:  []string{"diamond_ore"},
		PriorityOres: nil,
	})
	require.Equal(t, -30, merged.TargetDepth)
	require.Equal(t, 2, merged.BranchCount)
	require.Equal(t, []string{"diamond_ore"}, merged.AllowedOres)
	require.Equal(t, base.PriorityOres, merged.PriorityOres)
	require.Equal(t, base.SafeFallHeight, merged.SafeFallHeight)

	merged.PriorityOres[0] = "coal_ore"
	require.Equal(t, "diamond_ore", base.PriorityOres[0], "merge must copy slices")
	require.Equal(t, 12, base.TargetDepth)
}

func TestFurnaceTimeoutClamp(t *testing.T) {
	f := DefaultMining().Furnace
	require.Equal(t, 60*time.Second, f.Timeout(1))
	require.Equal(t, 120*time.Second, f.Timeout(10))
	require.Equal(t, 180*time.Second, f.Timeout(64))
}

func TestOreAllowed(t *testing.T) {
	c := DefaultMining()
	require.True(t, c.OreAllowed("coal_ore"))
	c.AllowedOres = []string{"iron_ore"}
	require.True(t, c.OreAllowed("iron_ore"))
	require.False(t, c.OreAllowed("coal_ore"))
}
