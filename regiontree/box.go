package regiontree

import (
	"fmt"
	"math"
	"math/bits"
)

// MinCoord and MaxCoord bound every coordinate a tree can address.
const (
	MinCoord = math.MinInt32
	MaxCoord = math.MaxInt32
)

// Point is an integer cell coordinate. Quadtrees ignore Y.
type Point struct {
	X, Y, Z int
}

func (p Point) coord(axis int) int {
	switch axis {
	case AxisX:
		return p.X
	case AxisZ:
		return p.Z
	default:
		return p.Y
	}
}

func (p Point) with(axis, v int) Point {
	switch axis {
	case AxisX:
		p.X = v
	case AxisZ:
		p.Z = v
	default:
		p.Y = v
	}
	return p
}

// String returns the point as "(x, y, z)".
func (p Point) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// Box is an axis-aligned box of cells. Both Min and Max are inclusive, so a box whose Min
// equals its Max selects exactly one cell.
type Box struct {
	Min Point
	Max Point
}

// NewBox returns the box spanning the two corners in any order.
func NewBox(a, b Point) Box {
	var box Box
	for axis := 0; axis < 3; axis++ {
		lo, hi := a.coord(axis), b.coord(axis)
		if lo > hi {
			lo, hi = hi, lo
		}
		box.Min = box.Min.with(axis, lo)
		box.Max = box.Max.with(axis, hi)
	}
	return box
}

// PointBox returns the single cell box at p.
func PointBox(p Point) Box {
	return Box{Min: p, Max: p}
}

// Valid reports whether Min <= Max on every axis.
func (b Box) Valid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Contains reports whether p lies within b.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ContainsBox reports whether o lies entirely within b.
func (b Box) ContainsBox(o Box) bool {
	return b.Contains(o.Min) && b.Contains(o.Max)
}

// Overlaps reports whether b and o share at least one cell.
func (b Box) Overlaps(o Box) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// Intersect returns the cells shared by b and o, and false when there are none.
func (b Box) Intersect(o Box) (Box, bool) {
	if !b.Overlaps(o) {
		return Box{}, false
	}
	var out Box
	for axis := 0; axis < 3; axis++ {
		out.Min = out.Min.with(axis, max(b.Min.coord(axis), o.Min.coord(axis)))
		out.Max = out.Max.with(axis, min(b.Max.coord(axis), o.Max.coord(axis)))
	}
	return out, true
}

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	var out Box
	for axis := 0; axis < 3; axis++ {
		out.Min = out.Min.with(axis, min(b.Min.coord(axis), o.Min.coord(axis)))
		out.Max = out.Max.with(axis, max(b.Max.coord(axis), o.Max.coord(axis)))
	}
	return out
}

// Size returns the number of cells b spans along axis.
func (b Box) Size(axis int) int {
	return b.Max.coord(axis) - b.Min.coord(axis) + 1
}

// Volume returns the number of cells in b, saturating at math.MaxInt64. A full range octree
// cube holds 2^96 cells.
func (b Box) Volume() int64 {
	if !b.Valid() {
		return 0
	}
	v := uint64(1)
	for _, axis := range []int{AxisX, AxisY, AxisZ} {
		hi, lo := bits.Mul64(v, uint64(b.Size(axis)))
		if hi != 0 || lo > math.MaxInt64 {
			return math.MaxInt64
		}
		v = lo
	}
	return int64(v)
}

// addVolume adds cell counts, saturating at math.MaxInt64.
func addVolume(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// String returns the box as "[min..max]".
func (b Box) String() string {
	return fmt.Sprintf("[%v..%v]", b.Min, b.Max)
}

func (b Box) inRange() bool {
	for axis := 0; axis < 3; axis++ {
		if b.Min.coord(axis) < MinCoord || b.Max.coord(axis) > MaxCoord {
			return false
		}
	}
	return true
}

// Cube returns the box covered by a cube of this kind at origin with the given side.
func (k Kind) Cube(origin Point, side int) Box {
	return k.cube(origin, side)
}

// cube returns the box covered by a node of this kind at corner with the given side.
func (k Kind) cube(corner Point, side int) Box {
	b := Box{Min: corner, Max: corner}
	for axis := 0; axis < k.Axes(); axis++ {
		b.Max = b.Max.with(axis, corner.coord(axis)+side-1)
	}
	return b
}

// normalize drops the axes k does not subdivide.
func (k Kind) normalize(p Point) Point {
	if k == Quadtree {
		p.Y = 0
	}
	return p
}

func (k Kind) normalizeBox(b Box) Box {
	return Box{Min: k.normalize(b.Min), Max: k.normalize(b.Max)}
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// ceilPowerOfTwo returns the smallest power of two >= n, for n >= 1.
func ceilPowerOfTwo(n int64) int64 {
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}
