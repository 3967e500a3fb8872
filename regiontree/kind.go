package regiontree

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind selects the branching factor of a tree. Quadtrees subdivide the X and Z axes, octrees
// subdivide X, Z and Y. Everything else about the two is shared.
type Kind uint8

const (
	// Quadtree has four children per partial node and is packed one byte per node.
	Quadtree = Kind(iota + 1)
	// Octree has eight children per partial node and is packed two bytes per node.
	Octree
)

// Axis indices. Child index bit N selects the upper half of axis N.
const (
	AxisX = iota
	AxisZ
	AxisY
)

// childOffsets[kind][child][axis] is 1 when the child occupies the upper half of that axis.
var childOffsets = map[Kind][][3]int{
	Quadtree: buildChildOffsets(4),
	Octree:   buildChildOffsets(8),
}

func buildChildOffsets(fanout int) [][3]int {
	offsets := make([][3]int, fanout)
	for child := 0; child < fanout; child++ {
		for axis := 0; axis < 3; axis++ {
			offsets[child][axis] = (child >> axis) & 1
		}
	}
	return offsets
}

// ParseKind parses "quadtree" or "octree" (case insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quadtree", "quad", "2d":
		return Quadtree, nil
	case "octree", "oct", "3d":
		return Octree, nil
	default:
		return 0, errors.Errorf("unknown tree kind %q", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == Quadtree || k == Octree
}

// Axes is the number of subdivided axes.
func (k Kind) Axes() int {
	if k == Octree {
		return 3
	}
	return 2
}

// Fanout is the number of children of a partial node.
func (k Kind) Fanout() int {
	return 1 << k.Axes()
}

// BytesPerNode is the number of packed tag bytes a partial node occupies in the encoding.
func (k Kind) BytesPerNode() int {
	return k.Fanout() / 4
}

// Ext is the file extension used by regionstore for trees of this kind.
func (k Kind) Ext() string {
	if k == Octree {
		return ".otree"
	}
	return ".qtree"
}

func (k Kind) String() string {
	switch k {
	case Quadtree:
		return "quadtree"
	case Octree:
		return "octree"
	default:
		return "unknown"
	}
}

// childCorner returns the min corner of child i of a node at corner with the given side.
func (k Kind) childCorner(corner Point, side, child int) Point {
	half := side / 2
	off := childOffsets[k][child]
	for axis := 0; axis < k.Axes(); axis++ {
		corner = corner.with(axis, corner.coord(axis)+off[axis]*half)
	}
	return corner
}

// childIndex returns which child of a node at corner with the given side holds p.
func (k Kind) childIndex(corner Point, side int, p Point) int {
	half := side / 2
	idx := 0
	for axis := 0; axis < k.Axes(); axis++ {
		if p.coord(axis) >= corner.coord(axis)+half {
			idx |= 1 << axis
		}
	}
	return idx
}
