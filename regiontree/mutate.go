package regiontree

import "github.com/pkg/errors"

// AddPoint includes the cell at p, growing the tree first if p lies outside it.
func (t *Tree) AddPoint(p Point) error {
	p = t.kind.normalize(p)
	if !PointBox(p).inRange() {
		return errors.Wrapf(ErrCoordinateOverflow, "point %v", p)
	}
	if err := t.expand(PointBox(p)); err != nil {
		return err
	}
	setPoint(t.kind, t.root, t.origin, t.side, p, FullNode)
	return nil
}

// RemovePoint excludes the cell at p. Points outside the tree are ignored.
func (t *Tree) RemovePoint(p Point) error {
	p = t.kind.normalize(p)
	if !PointBox(p).inRange() {
		return errors.Wrapf(ErrCoordinateOverflow, "point %v", p)
	}
	if t.side == 0 || !t.cube().Contains(p) {
		return nil
	}
	if setPoint(t.kind, t.root, t.origin, t.side, p, EmptyNode) {
		t.trimAsNeeded()
	}
	return nil
}

// AddBox includes every cell of b, growing the tree first if b reaches outside it.
func (t *Tree) AddBox(b Box) error {
	b, err := t.checkBox(b)
	if err != nil {
		return err
	}
	if err := t.expand(b); err != nil {
		return err
	}
	setBox(t.kind, t.root, t.origin, t.side, b, FullNode)
	return nil
}

// RemoveBox excludes every cell of b. The part of b outside the tree is ignored.
func (t *Tree) RemoveBox(b Box) error {
	b, err := t.checkBox(b)
	if err != nil {
		return err
	}
	if t.side == 0 {
		return nil
	}
	clipped, ok := b.Intersect(t.cube())
	if !ok {
		return nil
	}
	setBox(t.kind, t.root, t.origin, t.side, clipped, EmptyNode)
	t.trimAsNeeded()
	return nil
}

func (t *Tree) checkBox(b Box) (Box, error) {
	b = t.kind.normalizeBox(b)
	if !b.Valid() {
		return Box{}, errors.Wrapf(ErrInvalidBox, "%v", b)
	}
	if !b.inRange() {
		return Box{}, errors.Wrapf(ErrCoordinateOverflow, "box %v", b)
	}
	return b, nil
}

// setPoint descends to the single cell at p and sets it to value, collapsing on the way back.
// It reports whether anything changed.
func setPoint(kind Kind, n *Node, corner Point, side int, p Point, value NodeType) bool {
	if n.nodeType == value {
		return false
	}
	if side == 1 {
		n.setLeaf(value)
		return true
	}
	n.split(kind.Fanout())
	idx := kind.childIndex(corner, side, p)
	changed := setPoint(kind, n.children[idx], kind.childCorner(corner, side, idx), side/2, p, value)
	n.collapse()
	return changed
}

// setBox sets every cell of n that lies in sel to value.
func setBox(kind Kind, n *Node, corner Point, side int, sel Box, value NodeType) {
	if n.nodeType == value {
		return
	}
	cube := kind.cube(corner, side)
	if !sel.Overlaps(cube) {
		return
	}
	if sel.ContainsBox(cube) {
		n.setLeaf(value)
		return
	}
	n.split(kind.Fanout())
	for i, child := range n.children {
		setBox(kind, child, kind.childCorner(corner, side, i), side/2, sel, value)
	}
	n.collapse()
}
