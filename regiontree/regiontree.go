// Package regiontree implements sparse power-of-two region trees: octrees over X, Z and Y and
// quadtrees over X and Z. A tree stores an arbitrary set of integer cells as full, empty and
// partial nodes, packs to two bits per child, and is edited in place by point, box and bitmap
// additions and removals that grow and trim its covering cube as needed.
//
// Concept credit to Don Meagher, "Octree Encoding: A New Technique for the Representation,
// Manipulation and Display of Arbitrary 3-D Objects by Computer" (1980).
//
// Trees are not safe for concurrent use. See package regionedit for a locking, batching editor.
package regiontree

import "github.com/golang/geo/r3"

// Region is the surface a tree exposes to the systems that own it.
type Region interface {
	Contains(p Point) bool
	AddBox(b Box) error
	RemoveBox(b Box) error
}

// Comparison is the result of inspecting a bitmap over a box.
type Comparison uint8

const (
	// Mixed means the bitmap holds both values over the box.
	Mixed = Comparison(iota)
	// UniformFalse means every bit over the box is false.
	UniformFalse
	// UniformTrue means every bit over the box is true.
	UniformTrue
)

func (c Comparison) String() string {
	switch c {
	case UniformFalse:
		return "uniform-false"
	case UniformTrue:
		return "uniform-true"
	default:
		return "mixed"
	}
}

// Bitmap is an externally indexed set of cells merged into a tree by AddBitmap and
// RemoveBitmap. Compare inspects the bits over the intersection of the given box and Bounds;
// an empty intersection must report UniformFalse.
type Bitmap interface {
	Bounds() Box
	Compare(b Box) Comparison
}

// PointFromVector returns the cell holding a floating point position.
func PointFromVector(v r3.Vector) Point {
	return Point{X: floorInt(v.X), Y: floorInt(v.Y), Z: floorInt(v.Z)}
}

func floorInt(f float64) int {
	i := int(f)
	if float64(i) > f {
		i--
	}
	return i
}
