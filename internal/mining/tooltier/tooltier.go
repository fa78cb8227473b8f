// Package tooltier maps blocks to the tool tier needed to harvest them and picks the best
// held tool. Everything here is pure.
package tooltier

import (
	"strings"
	"time"

	"voxelminer.ai/internal/agent"
)

// Tier is the ordinal rank of a tool's material. TierNone means "no tool".
type Tier int

const (
	TierNone Tier = iota
	TierWooden
	TierStone
	TierIron
	TierGolden
	TierDiamond
	TierNetherite
)

var tierNames = []string{"none", "wooden", "stone", "iron", "golden", "diamond", "netherite"}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return "unknown"
	}
	return tierNames[t]
}

// Compare returns -1, 0 or 1.
func Compare(a, b Tier) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MeetsRequirement reports whether a tool of tier have can harvest blocks needing need.
func MeetsRequirement(have, need Tier) bool { return have >= need }

// Lower returns the next tier down the crafting ladder (iron -> stone -> wooden).
// Golden is skipped: it is a side branch, never a fallback.
func (t Tier) Lower() Tier {
	switch t {
	case TierNetherite:
		return TierDiamond
	case TierDiamond, TierGolden:
		return TierIron
	case TierIron:
		return TierStone
	case TierStone:
		return TierWooden
	}
	return TierNone
}

// Kind is the tool family.
type Kind int

const (
	KindNone Kind = iota
	KindPickaxe
	KindAxe
	KindShovel
)

func (k Kind) String() string {
	switch k {
	case KindPickaxe:
		return "pickaxe"
	case KindAxe:
		return "axe"
	case KindShovel:
		return "shovel"
	}
	return "none"
}

// ItemName builds the item id of a tool, e.g. stone_pickaxe.
func ItemName(kind Kind, tier Tier) string {
	if kind == KindNone || tier == TierNone {
		return ""
	}
	return tier.String() + "_" + kind.String()
}

// TierOf parses the material prefix of a tool item name.
func TierOf(item string) (Tier, bool) {
	prefix, _, ok := strings.Cut(item, "_")
	if !ok {
		return TierNone, false
	}
	switch prefix {
	case "wooden", "wood":
		return TierWooden, true
	case "stone":
		return TierStone, true
	case "iron":
		return TierIron, true
	case "golden", "gold":
		return TierGolden, true
	case "diamond":
		return TierDiamond, true
	case "netherite":
		return TierNetherite, true
	}
	return TierNone, false
}

// KindOf returns the tool family of an item name.
func KindOf(item string) Kind {
	switch {
	case strings.HasSuffix(item, "_pickaxe"):
		return KindPickaxe
	case strings.HasSuffix(item, "_axe"):
		return KindAxe
	case strings.HasSuffix(item, "_shovel"):
		return KindShovel
	}
	return KindNone
}

// IsTool reports whether item is a tiered tool.
func IsTool(item string) bool {
	if KindOf(item) == KindNone {
		return false
	}
	_, ok := TierOf(item)
	return ok
}

// Category groups blocks by harvest requirement.
type Category string

const (
	CategoryNone     Category = ""
	CategoryStone    Category = "stone"
	CategoryCoal     Category = "coal"
	CategoryIron     Category = "iron"
	CategoryCopper   Category = "copper"
	CategoryGold     Category = "gold"
	CategoryRedstone Category = "redstone"
	CategoryLapis    Category = "lapis"
	CategoryDiamond  Category = "diamond"
	CategoryEmerald  Category = "emerald"
	CategorySoil     Category = "soil"
	CategoryWood     Category = "wood"
)

// Iron is the one ore a stone pickaxe may take: the iron tool is smelted from it.
var requiredTier = map[Category]Tier{
	CategoryStone:    TierWooden,
	CategoryCoal:     TierWooden,
	CategoryIron:     TierStone,
	CategoryCopper:   TierIron,
	CategoryLapis:    TierIron,
	CategoryGold:     TierIron,
	CategoryRedstone: TierIron,
	CategoryDiamond:  TierIron,
	CategoryEmerald:  TierIron,
}

var stoneBlocks = map[string]bool{
	"stone": true, "cobblestone": true, "deepslate": true, "cobbled_deepslate": true,
	"andesite": true, "diorite": true, "granite": true, "tuff": true,
	"furnace": true, "magma_block": true,
}

var soilBlocks = map[string]bool{
	"dirt": true, "grass_block": true, "sand": true, "gravel": true,
}

// CategoryOf classifies a block name.
func CategoryOf(block string) Category {
	if ore, ok := OreFamily(block); ok {
		return Category(ore)
	}
	switch {
	case stoneBlocks[block]:
		return CategoryStone
	case soilBlocks[block]:
		return CategorySoil
	case strings.HasSuffix(block, "_log"), strings.HasSuffix(block, "_planks"), block == "crafting_table":
		return CategoryWood
	}
	return CategoryNone
}

// OreFamily strips the deepslate prefix and _ore suffix: deepslate_iron_ore -> iron.
func OreFamily(block string) (string, bool) {
	name, ok := strings.CutSuffix(block, "_ore")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(name, "deepslate_"), true
}

// IsOre reports whether block is an ore block.
func IsOre(block string) bool {
	_, ok := OreFamily(block)
	return ok
}

// RequiredTier is the minimum tier that harvests a category; soft blocks need none.
func RequiredTier(c Category) Tier {
	return requiredTier[c]
}

// KindFor returns the preferred tool family for a category.
func KindFor(c Category) Kind {
	switch c {
	case CategorySoil:
		return KindShovel
	case CategoryWood:
		return KindAxe
	case CategoryNone:
		return KindNone
	}
	return KindPickaxe
}

// Requirement combines the family and tier a block needs.
type Requirement struct {
	Kind Kind
	Tier Tier
}

// RequirementFor returns what is needed to harvest block.
func RequirementFor(block string) Requirement {
	c := CategoryOf(block)
	return Requirement{Kind: KindFor(c), Tier: RequiredTier(c)}
}

// BestHeldTool selects the highest-tier tool of kind at or above need.
func BestHeldTool(items []agent.ItemStack, kind Kind, need Tier) (agent.ItemStack, Tier, bool) {
	var (
		best     agent.ItemStack
		bestTier = TierNone
		found    bool
	)
	for _, st := range items {
		if st.Count <= 0 || KindOf(st.Item) != kind {
			continue
		}
		tier, ok := TierOf(st.Item)
		if !ok || !MeetsRequirement(tier, need) {
			continue
		}
		if !found || tier > bestTier {
			best, bestTier, found = st, tier, true
		}
	}
	return best, bestTier, found
}

// HeldTier is the best tier of kind carried, or TierNone.
func HeldTier(items []agent.ItemStack, kind Kind) Tier {
	_, tier, ok := BestHeldTool(items, kind, TierNone)
	if !ok {
		return TierNone
	}
	return tier
}

// DigDuration is the time to break one block with a tool of tier.
func DigDuration(tier Tier) time.Duration {
	switch {
	case tier >= TierDiamond:
		return 200 * time.Millisecond
	case tier >= TierIron:
		return 400 * time.Millisecond
	case tier == TierStone:
		return 600 * time.Millisecond
	case tier == TierWooden:
		return 800 * time.Millisecond
	}
	return time.Second
}
