package simworld

import "voxelminer.ai/internal/agent"

const chunkSize = 16

type chunkKey struct {
	CX int
	CZ int
}

// chunk is a full-height column of chunkSize x chunkSize cells.
type chunk struct {
	blocks []uint16 // x fastest, then z, then y
}

// store holds the voxel grid as lazily generated palette-indexed column chunks.
type store struct {
	minY, maxY int
	radius     int
	gen        Generator

	palette []string
	index   map[string]uint16
	chunks  map[chunkKey]*chunk
}

func newStore(minY, maxY, radius int, gen Generator) *store {
	s := &store{
		minY:   minY,
		maxY:   maxY,
		radius: radius,
		gen:    gen,
		index:  map[string]uint16{},
		chunks: map[chunkKey]*chunk{},
	}
	s.id("air")
	return s
}

func (s *store) id(name string) uint16 {
	if v, ok := s.index[name]; ok {
		return v
	}
	v := uint16(len(s.palette))
	s.palette = append(s.palette, name)
	s.index[name] = v
	return v
}

func (s *store) inBounds(p agent.Vec3) bool {
	if p.Y < s.minY || p.Y > s.maxY {
		return false
	}
	if s.radius > 0 && (p.X < -s.radius || p.X > s.radius || p.Z < -s.radius || p.Z > s.radius) {
		return false
	}
	return true
}

func (s *store) height() int { return s.maxY - s.minY + 1 }

func (s *store) chunkAt(p agent.Vec3) (*chunk, int) {
	cx, cz := floorDiv(p.X, chunkSize), floorDiv(p.Z, chunkSize)
	k := chunkKey{CX: cx, CZ: cz}
	ch := s.chunks[k]
	if ch == nil {
		ch = s.generate(cx, cz)
		s.chunks[k] = ch
	}
	lx, lz := mod(p.X, chunkSize), mod(p.Z, chunkSize)
	return ch, lx + lz*chunkSize + (p.Y-s.minY)*chunkSize*chunkSize
}

func (s *store) generate(cx, cz int) *chunk {
	ch := &chunk{blocks: make([]uint16, chunkSize*chunkSize*s.height())}
	bedrock := s.id("bedrock")
	for y := s.minY; y <= s.maxY; y++ {
		for z := 0; z < chunkSize; z++ {
			for x := 0; x < chunkSize; x++ {
				i := x + z*chunkSize + (y-s.minY)*chunkSize*chunkSize
				if y == s.minY {
					ch.blocks[i] = bedrock
					continue
				}
				name := "air"
				if s.gen != nil {
					name = s.gen.Block(cx*chunkSize+x, y, cz*chunkSize+z)
				}
				ch.blocks[i] = s.id(name)
			}
		}
	}
	return ch
}

func (s *store) get(p agent.Vec3) (string, bool) {
	if !s.inBounds(p) {
		return "", false
	}
	ch, i := s.chunkAt(p)
	return s.palette[ch.blocks[i]], true
}

func (s *store) set(p agent.Vec3, name string) bool {
	if !s.inBounds(p) {
		return false
	}
	ch, i := s.chunkAt(p)
	ch.blocks[i] = s.id(name)
	return true
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
