package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"
)

//go:embed defaults/*.json
var defaultFS embed.FS

// TickDuration converts recipe time_ticks to wall time.
const TickDuration = 50 * time.Millisecond

// Stations.
const (
	StationHand          = "HAND"
	StationCraftingTable = "CRAFTING_TABLE"
	StationFurnace       = "FURNACE"
)

type Catalogs struct {
	Blocks  BlockCatalog
	Items   ItemCatalog
	Recipes RecipeCatalog

	smeltByInput map[string]RecipeDef
}

type BlockCatalog struct {
	Defs       map[string]BlockDef
	DefsDigest string
}

type BlockDef struct {
	ID        string `json:"id"`
	Solid     bool   `json:"solid"`
	Breakable bool   `json:"breakable"`
	Fluid     bool   `json:"fluid,omitempty"`
	Harmful   bool   `json:"harmful,omitempty"`
	Gravity   bool   `json:"gravity,omitempty"`
	DropsItem string `json:"drops_item,omitempty"`
}

type ItemCatalog struct {
	Defs       map[string]ItemDef
	DefsDigest string

	byTag map[string][]string
}

type ItemDef struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"` // "BLOCK","TOOL","MATERIAL","FUEL","FOOD"
	PlaceAs   string   `json:"place_as,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	FuelItems float64  `json:"fuel_items,omitempty"` // items smelted per unit burned
	MaxStack  int      `json:"max_stack,omitempty"`
}

type RecipeCatalog struct {
	ByID   map[string]RecipeDef
	Digest string
}

type RecipeDef struct {
	RecipeID  string      `json:"recipe_id"`
	Station   string      `json:"station"`
	Inputs    []ItemCount `json:"inputs"`
	Outputs   []ItemCount `json:"outputs"`
	TimeTicks int         `json:"time_ticks"`
}

// ItemCount is a recipe ingredient or product. Ingredient items starting with "#" name a tag.
type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Default returns the embedded catalog.
func Default() (*Catalogs, error) {
	sub, err := fs.Sub(defaultFS, "defaults")
	if err != nil {
		return nil, err
	}
	return loadFS(sub)
}

// MustDefault is Default for package-level initialisation and tests.
func MustDefault() *Catalogs {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads blocks.json, items.json and recipes.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	return loadFS(os.DirFS(configDir))
}

func loadFS(fsys fs.FS) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(fsys, "blocks.json", &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadItems(fsys, "items.json", &c.Items); err != nil {
		return nil, err
	}
	if err := loadRecipes(fsys, "recipes.json", &c.Recipes); err != nil {
		return nil, err
	}
	m, err := BuildSmeltByInput(c.Recipes.ByID)
	if err != nil {
		return nil, err
	}
	c.smeltByInput = m
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(fsys fs.FS, path string, out *BlockCatalog) error {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	if _, ok := out.Defs["air"]; !ok {
		return fmt.Errorf("blocks.json: missing air")
	}
	return nil
}

func loadItems(fsys fs.FS, path string, out *ItemCatalog) error {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	out.byTag = map[string][]string{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
		for _, tag := range d.Tags {
			out.byTag[tag] = append(out.byTag[tag], d.ID)
		}
	}
	for tag := range out.byTag {
		sort.Strings(out.byTag[tag])
	}
	return nil
}

func loadRecipes(fsys fs.FS, path string, out *RecipeCatalog) error {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	out.ByID = map[string]RecipeDef{}
	for _, r := range defs {
		if r.RecipeID == "" {
			return fmt.Errorf("recipes.json: empty recipe_id")
		}
		out.ByID[r.RecipeID] = r
	}
	return nil
}

// BuildSmeltByInput indexes furnace recipes by their primary (first) input.
func BuildSmeltByInput(recipes map[string]RecipeDef) (map[string]RecipeDef, error) {
	ids := make([]string, 0, len(recipes))
	for id := range recipes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := map[string]RecipeDef{}
	for _, id := range ids {
		r := recipes[id]
		if r.Station != StationFurnace || len(r.Inputs) == 0 {
			continue
		}
		primary := r.Inputs[0].Item
		if prev, ok := out[primary]; ok {
			return nil, fmt.Errorf("recipes.json: furnace input %s used by %s and %s", primary, prev.RecipeID, r.RecipeID)
		}
		out[primary] = r
	}
	return out, nil
}

func (c *Catalogs) Block(name string) (BlockDef, bool) {
	d, ok := c.Blocks.Defs[name]
	return d, ok
}

// IsAir reports empty cells; unknown names count as solid matter.
func (c *Catalogs) IsAir(name string) bool {
	return name == "" || name == "air" || name == "cave_air"
}

func (c *Catalogs) IsSolid(name string) bool {
	if c.IsAir(name) {
		return false
	}
	d, ok := c.Blocks.Defs[name]
	if !ok {
		return true
	}
	return d.Solid
}

func (c *Catalogs) IsFluid(name string) bool {
	d, ok := c.Blocks.Defs[name]
	return ok && d.Fluid
}

func (c *Catalogs) IsHarmfulFluid(name string) bool {
	d, ok := c.Blocks.Defs[name]
	return ok && d.Fluid && d.Harmful
}

// IsHazard covers harmful fluids and open flame (or hot blocks).
func (c *Catalogs) IsHazard(name string) bool {
	d, ok := c.Blocks.Defs[name]
	return ok && d.Harmful
}

func (c *Catalogs) IsBreakable(name string) bool {
	d, ok := c.Blocks.Defs[name]
	if !ok {
		return !c.IsAir(name)
	}
	return d.Breakable
}

func (c *Catalogs) HasGravity(name string) bool {
	d, ok := c.Blocks.Defs[name]
	return ok && d.Gravity
}

// Passable reports whether an agent body can occupy a cell holding name.
func (c *Catalogs) Passable(name string) bool {
	if c.IsAir(name) {
		return true
	}
	d, ok := c.Blocks.Defs[name]
	return ok && !d.Solid && !d.Harmful
}

// DropFor returns the item a broken block yields ("" for nothing).
func (c *Catalogs) DropFor(block string) string {
	d, ok := c.Blocks.Defs[block]
	if !ok {
		return ""
	}
	return d.DropsItem
}

func (c *Catalogs) Item(name string) (ItemDef, bool) {
	d, ok := c.Items.Defs[name]
	return d, ok
}

// PlaceAs returns the block an item becomes when placed.
func (c *Catalogs) PlaceAs(item string) string {
	d, ok := c.Items.Defs[item]
	if !ok {
		return ""
	}
	return d.PlaceAs
}

func (c *Catalogs) HasTag(item, tag string) bool {
	d, ok := c.Items.Defs[item]
	if !ok {
		return false
	}
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Matches reports whether item satisfies ingredient (an item name or "#tag").
func (c *Catalogs) Matches(ingredient, item string) bool {
	if tag, ok := strings.CutPrefix(ingredient, "#"); ok {
		return c.HasTag(item, tag)
	}
	return ingredient == item
}

// Tagged lists the items carrying tag, sorted.
func (c *Catalogs) Tagged(tag string) []string {
	return append([]string(nil), c.Items.byTag[strings.TrimPrefix(tag, "#")]...)
}

// FuelItems is how many items one unit of item smelts (0 = not a fuel).
func (c *Catalogs) FuelItems(item string) float64 {
	d, ok := c.Items.Defs[item]
	if !ok {
		return 0
	}
	return d.FuelItems
}

func (c *Catalogs) MaxStack(item string) int {
	d, ok := c.Items.Defs[item]
	if !ok || d.MaxStack <= 0 {
		return 64
	}
	return d.MaxStack
}

func (c *Catalogs) Recipe(id string) (RecipeDef, bool) {
	r, ok := c.Recipes.ByID[id]
	return r, ok
}

func (c *Catalogs) SmeltRecipeByInput(item string) (RecipeDef, bool) {
	r, ok := c.smeltByInput[item]
	return r, ok
}

// SmeltDuration is the furnace time for one unit of a recipe.
func (r RecipeDef) SmeltDuration() time.Duration {
	return time.Duration(r.TimeTicks) * TickDuration
}

// PlanksFor returns the planks recipe for a log item.
func (c *Catalogs) PlanksFor(log string) (RecipeDef, bool) {
	name, ok := strings.CutSuffix(log, "_log")
	if !ok {
		return RecipeDef{}, false
	}
	return c.Recipe(name + "_planks")
}

// BlockNames lists block ids, sorted; used by generators and schema checks.
func (c *Catalogs) BlockNames() []string {
	out := make([]string, 0, len(c.Blocks.Defs))
	for id := range c.Blocks.Defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
