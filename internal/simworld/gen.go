package simworld

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Generator decides the initial block of every cell. The bottom layer is always bedrock.
type Generator interface {
	Block(x, y, z int) string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(x, y, z int) string

func (f GeneratorFunc) Block(x, y, z int) string { return f(x, y, z) }

// Flat is a layered world: grass at surface, three dirt layers, stone down to y=0 and
// deepslate below.
func Flat(surface int) Generator {
	return GeneratorFunc(func(_, y, _ int) string {
		switch {
		case y > surface:
			return "air"
		case y == surface:
			return "grass_block"
		case y >= surface-3:
			return "dirt"
		case y >= 0:
			return "stone"
		}
		return "deepslate"
	})
}

// oreBand places one ore family between two heights.
type oreBand struct {
	name      string
	minY      int
	maxY      int
	threshold float64
	salt      int64
}

var oreBands = []oreBand{
	{name: "diamond", minY: -64, maxY: 16, threshold: 0.86, salt: 11},
	{name: "emerald", minY: -16, maxY: 96, threshold: 0.92, salt: 12},
	{name: "redstone", minY: -64, maxY: 16, threshold: 0.82, salt: 13},
	{name: "lapis", minY: -64, maxY: 64, threshold: 0.84, salt: 14},
	{name: "gold", minY: -64, maxY: 32, threshold: 0.84, salt: 15},
	{name: "iron", minY: -24, maxY: 72, threshold: 0.76, salt: 16},
	{name: "copper", minY: -16, maxY: 96, threshold: 0.78, salt: 17},
	{name: "coal", minY: 0, maxY: 192, threshold: 0.72, salt: 18},
}

// Terrain is a seeded noise world: rolling surface with forest patches, caves, lava at
// the bottom and ore bands by depth.
type Terrain struct {
	Seed      int64
	BaseY     int
	Amplitude float64

	height opensimplex.Noise
	forest opensimplex.Noise
	caves  opensimplex.Noise
	ores   map[string]opensimplex.Noise
}

func NewTerrain(seed int64, baseY int) *Terrain {
	t := &Terrain{
		Seed:      seed,
		BaseY:     baseY,
		Amplitude: 8,
		height:    opensimplex.NewNormalized(seed),
		forest:    opensimplex.NewNormalized(seed + 1),
		caves:     opensimplex.NewNormalized(seed + 2),
		ores:      map[string]opensimplex.Noise{},
	}
	for _, b := range oreBands {
		t.ores[b.name] = opensimplex.NewNormalized(seed + 100 + b.salt)
	}
	return t
}

// SurfaceY is the grass height of column (x, z).
func (t *Terrain) SurfaceY(x, z int) int {
	n := octaveNoise(t.height, float64(x), float64(z), 4, 0.01, 0.5)
	return t.BaseY + int((n-0.5)*2*t.Amplitude)
}

func (t *Terrain) Block(x, y, z int) string {
	surface := t.SurfaceY(x, z)
	if y > surface {
		return t.tree(x, y, z, surface)
	}
	if y == surface {
		return "grass_block"
	}
	if y >= surface-3 {
		return "dirt"
	}
	if y < surface-8 && t.caves.Eval3(float64(x)*0.06, float64(y)*0.09, float64(z)*0.06) > 0.8 {
		if y <= -55 {
			return "lava"
		}
		return "cave_air"
	}
	for _, b := range oreBands {
		if y < b.minY || y > b.maxY {
			continue
		}
		if t.ores[b.name].Eval3(float64(x)*0.2, float64(y)*0.2, float64(z)*0.2) > b.threshold {
			if y < 0 {
				return "deepslate_" + b.name + "_ore"
			}
			return b.name + "_ore"
		}
	}
	if y < 0 {
		return "deepslate"
	}
	return "stone"
}

// tree plants sparse oak trunks where the forest noise is high.
func (t *Terrain) tree(x, y, z, surface int) string {
	if t.forest.Eval2(float64(x)*0.02, float64(z)*0.02) < 0.55 {
		return "air"
	}
	if hash2(t.Seed+7, x, z)%23 != 0 {
		return "air"
	}
	if y-surface <= 4 {
		return "oak_log"
	}
	return "air"
}

// octaveNoise layers octaves of 2D noise, normalised back to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}
