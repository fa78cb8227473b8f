package tooltier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/agent"
)

var allTiers = []Tier{TierNone, TierWooden, TierStone, TierIron, TierGolden, TierDiamond, TierNetherite}

func TestTierTotalOrder(t *testing.T) {
	for _, a := range allTiers {
		for _, b := range allTiers {
			lt, eq, gt := a < b, a == b, a > b
			n := 0
			for _, v := range []bool{lt, eq, gt} {
				if v {
					n++
				}
			}
			require.Equal(t, 1, n, "%s vs %s", a, b)
			require.Equal(t, -Compare(b, a), Compare(a, b))
		}
		require.True(t, MeetsRequirement(a, a), "reflexive for %s", a)
	}
}

func TestTierOf(t *testing.T) {
	cases := map[string]Tier{
		"wooden_pickaxe":    TierWooden,
		"stone_pickaxe":     TierStone,
		"iron_axe":          TierIron,
		"golden_shovel":     TierGolden,
		"diamond_pickaxe":   TierDiamond,
		"netherite_pickaxe": TierNetherite,
	}
	for item, want := range cases {
		got, ok := TierOf(item)
		require.True(t, ok, item)
		assert.Equal(t, want, got, item)
	}
	_, ok := TierOf("stick")
	require.False(t, ok)
	require.False(t, IsTool("iron_ingot"))
	require.True(t, IsTool("iron_pickaxe"))
}

func TestRequirementFor(t *testing.T) {
	assert.Equal(t, Requirement{Kind: KindPickaxe, Tier: TierWooden}, RequirementFor("stone"))
	assert.Equal(t, Requirement{Kind: KindPickaxe, Tier: TierWooden}, RequirementFor("coal_ore"))
	assert.Equal(t, Requirement{Kind: KindPickaxe, Tier: TierStone}, RequirementFor("deepslate_iron_ore"))
	assert.Equal(t, Requirement{Kind: KindPickaxe, Tier: TierIron}, RequirementFor("diamond_ore"))
	assert.Equal(t, Requirement{Kind: KindPickaxe, Tier: TierIron}, RequirementFor("redstone_ore"))
	assert.Equal(t, Requirement{Kind: KindPickaxe, Tier: TierIron}, RequirementFor("lapis_ore"))
	assert.Equal(t, Requirement{Kind: KindPickaxe, Tier: TierIron}, RequirementFor("deepslate_copper_ore"))
	assert.Equal(t, Requirement{Kind: KindShovel, Tier: TierNone}, RequirementFor("gravel"))
	assert.Equal(t, Requirement{Kind: KindAxe, Tier: TierNone}, RequirementFor("oak_log"))
	assert.Equal(t, Requirement{Kind: KindNone, Tier: TierNone}, RequirementFor("torch"))
}

func TestBestHeldToolPrefersHighest(t *testing.T) {
	inv := []agent.ItemStack{
		{Item: "wooden_pickaxe", Count: 1},
		{Item: "iron_pickaxe", Count: 1},
		{Item: "stone_pickaxe", Count: 1},
		{Item: "diamond_axe", Count: 1},
	}
	st, tier, ok := BestHeldTool(inv, KindPickaxe, TierWooden)
	require.True(t, ok)
	require.Equal(t, "iron_pickaxe", st.Item)
	require.Equal(t, TierIron, tier)

	_, _, ok = BestHeldTool(inv, KindPickaxe, TierDiamond)
	require.False(t, ok)
	require.Equal(t, TierNone, HeldTier(inv, KindShovel))
}

func TestLowerLadder(t *testing.T) {
	require.Equal(t, TierStone, TierIron.Lower())
	require.Equal(t, TierWooden, TierStone.Lower())
	require.Equal(t, TierNone, TierWooden.Lower())
	require.Equal(t, TierIron, TierGolden.Lower())
}

func TestDigDurationMonotonic(t *testing.T) {
	prev := DigDuration(TierNone)
	for _, tier := range []Tier{TierWooden, TierStone, TierIron, TierDiamond} {
		d := DigDuration(tier)
		require.LessOrEqual(t, d, prev)
		prev = d
	}
}
