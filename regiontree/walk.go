package regiontree

import (
	"slices"

	"github.com/pkg/errors"
)

// Stats summarizes the shape of a tree.
type Stats struct {
	Kind        Kind
	Bounds      Box
	Partial     int
	Full        int
	Empty       int
	MaxDepth    int
	Volume      int64
	EncodedSize int
}

// Walk calls fn for every node in pre-order along with the box it covers. Returning false skips
// the node's children. A zero-size tree has no nodes to walk.
func (t *Tree) Walk(fn func(n *Node, box Box) bool) {
	if t.side == 0 {
		return
	}
	t.walk(t.root, t.origin, t.side, 0, func(n *Node, box Box, _ int) bool {
		return fn(n, box)
	})
}

func (t *Tree) walk(n *Node, corner Point, side, depth int, fn func(*Node, Box, int) bool) {
	if !fn(n, t.kind.cube(corner, side), depth) || !n.IsPartial() {
		return
	}
	for i, child := range n.children {
		t.walk(child, t.kind.childCorner(corner, side, i), side/2, depth+1, fn)
	}
}

// Volume returns the number of included cells, saturating at math.MaxInt64.
func (t *Tree) Volume() int64 {
	var v int64
	t.Walk(func(n *Node, box Box) bool {
		if n.IsFull() {
			v = addVolume(v, box.Volume())
		}
		return true
	})
	return v
}

// Stats walks the tree and returns its node counts, depth, volume and encoded size.
func (t *Tree) Stats() Stats {
	s := Stats{Kind: t.kind}
	s.Bounds, _ = t.Bounds()
	if t.side == 0 {
		s.Empty = 1
		return s
	}
	t.walk(t.root, t.origin, t.side, 0, func(n *Node, box Box, depth int) bool {
		s.MaxDepth = max(s.MaxDepth, depth)
		switch n.nodeType {
		case PartialNode:
			s.Partial++
		case FullNode:
			s.Full++
			s.Volume = addVolume(s.Volume, box.Volume())
		case EmptyNode:
			s.Empty++
		}
		return true
	})
	s.EncodedSize = s.Partial * t.kind.BytesPerNode()
	if t.root.IsFull() {
		s.EncodedSize = t.kind.BytesPerNode()
	}
	return s
}

// CheckInvariants verifies that every partial node has a full set of children, covers more than
// one cell, and does not hold only full or only empty leaves.
func (t *Tree) CheckInvariants() error {
	if t.side == 0 {
		if !t.root.IsEmpty() {
			return errors.Wrapf(ErrInvariantViolation, "zero-size tree has %s root", t.root.nodeType)
		}
		return nil
	}
	if !isPowerOfTwo(t.side) {
		return errors.Wrapf(ErrInvariantViolation, "side %d is not a power of two", t.side)
	}
	var err error
	t.Walk(func(n *Node, box Box) bool {
		if err != nil {
			return false
		}
		switch {
		case n.nodeType > FullNode:
			err = errors.Wrapf(ErrInvariantViolation, "node at %v has tag %d", box, n.nodeType)
		case !n.IsPartial():
			if n.children != nil {
				err = errors.Wrapf(ErrInvariantViolation, "%s leaf at %v has children", n.nodeType, box)
			}
		case len(n.children) != t.kind.Fanout() || slices.Contains(n.children, nil):
			err = errors.Wrapf(ErrInvariantViolation, "partial node at %v has %d children", box, len(n.children))
		case box.Size(AxisX) == 1:
			err = errors.Wrapf(ErrInvariantViolation, "partial node at %v subdivides a single cell", box)
		default:
			if c := n.Clone(); c.collapse() {
				err = errors.Wrapf(ErrInvariantViolation, "partial node at %v is all %s", box, c.nodeType)
			}
		}
		return err == nil
	})
	return err
}
