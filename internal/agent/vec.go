package agent

import (
	"fmt"
	"math"
)

// Vec3 is an integer block coordinate.
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func V(x, y, z int) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3) Offset(dx, dy, dz int) Vec3 { return Vec3{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz} }

func (v Vec3) Up() Vec3   { return v.Offset(0, 1, 0) }
func (v Vec3) Down() Vec3 { return v.Offset(0, -1, 0) }

func (v Vec3) Distance(o Vec3) float64 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	dz := float64(v.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vec3) Manhattan(o Vec3) int {
	return abs(v.X-o.X) + abs(v.Y-o.Y) + abs(v.Z-o.Z)
}

func (v Vec3) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

func (v Vec3) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

// Neighbors6 are the face-adjacent offsets.
var Neighbors6 = []Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Cardinals are the horizontal unit directions in clockwise order starting north (-Z).
var Cardinals = []Vec3{
	{Z: -1}, {X: 1}, {Z: 1}, {X: -1},
}

// Diagonals are the horizontal corner offsets.
var Diagonals = []Vec3{
	{X: 1, Z: -1}, {X: 1, Z: 1}, {X: -1, Z: 1}, {X: -1, Z: -1},
}

// RotateRight turns a horizontal unit vector 90 degrees clockwise.
func (v Vec3) RotateRight() Vec3 { return Vec3{X: -v.Z, Z: v.X} }

// RotateLeft turns a horizontal unit vector 90 degrees counter-clockwise.
func (v Vec3) RotateLeft() Vec3 { return Vec3{X: v.Z, Z: -v.X} }

// Horizontal snaps an arbitrary facing to the dominant cardinal axis.
// A zero vector snaps to north.
func (v Vec3) Horizontal() Vec3 {
	if v.X == 0 && v.Z == 0 {
		return Vec3{Z: -1}
	}
	if abs(v.X) >= abs(v.Z) {
		return Vec3{X: sign(v.X)}
	}
	return Vec3{Z: sign(v.Z)}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
