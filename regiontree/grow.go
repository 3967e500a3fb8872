package regiontree

import "github.com/pkg/errors"

// maxSide is the widest cube the coordinate range can hold.
const maxSide = int64(MaxCoord) - int64(MinCoord) + 1

// expand grows the covering cube until it contains request, keeping every cell's state. The old
// root becomes one node of the new tree, reached through a chain of wrapper levels whose other
// children are empty. On error the tree is unchanged.
func (t *Tree) expand(request Box) error {
	if t.side == 0 {
		var extent int64
		for axis := 0; axis < t.kind.Axes(); axis++ {
			extent = max(extent, int64(request.Size(axis)))
		}
		side := ceilPowerOfTwo(extent)
		origin := request.Min
		for axis := 0; axis < t.kind.Axes(); axis++ {
			origin = origin.with(axis, int(min(int64(origin.coord(axis)), MaxCoord-side+1)))
		}
		if err := checkCube(t.kind, origin, side); err != nil {
			return err
		}
		t.origin, t.side = origin, int(side)
		t.root = newEmptyNode()
		t.logger.Debugw("sized tree", "kind", t.kind, "origin", t.origin, "side", t.side)
		return nil
	}

	cube := t.cube()
	if cube.ContainsBox(request) {
		return nil
	}

	axes := t.kind.Axes()
	side := int64(t.side)
	var low, high [3]int64
	k := 0
	for axis := 0; axis < axes; axis++ {
		if over := int64(cube.Min.coord(axis)) - int64(request.Min.coord(axis)); over > 0 {
			low[axis] = (over + side - 1) / side
		}
		if over := int64(request.Max.coord(axis)) - int64(cube.Max.coord(axis)); over > 0 {
			high[axis] = (over + side - 1) / side
		}
		for int64(1)<<k < 1+low[axis]+high[axis] {
			k++
		}
	}
	units := int64(1) << k
	newSide := side * units
	if newSide > maxSide {
		return errors.Wrapf(ErrCoordinateOverflow, "expanding %v to cover %v", t, request)
	}

	// offset is the old root's position in the new cube, in units of the old side.
	var offset [3]int64
	origin := t.origin
	for axis := 0; axis < axes; axis++ {
		slack := units - 1 - low[axis] - high[axis]
		off := low[axis] + slack/2
		if slack%2 == 1 && low[axis] > high[axis] {
			off++
		}

		// Shift within the slack if the centered cube leaves the coordinate range.
		o := int64(t.origin.coord(axis))
		lo, hi := low[axis], units-1-high[axis]
		hi = min(hi, (o-MinCoord)/side)
		if past := o + newSide - 1 - MaxCoord; past > 0 {
			lo = max(lo, (past+side-1)/side)
		}
		if lo > hi {
			return errors.Wrapf(ErrCoordinateOverflow, "expanding %v to cover %v", t, request)
		}
		off = min(max(off, lo), hi)

		offset[axis] = off
		origin = origin.with(axis, int(o-off*side))
	}

	node := t.root
	for lvl := 0; lvl < k; lvl++ {
		idx := 0
		for axis := 0; axis < axes; axis++ {
			idx |= int((offset[axis]>>lvl)&1) << axis
		}
		children := make([]*Node, t.kind.Fanout())
		for i := range children {
			children[i] = newEmptyNode()
		}
		children[idx] = node
		wrapper := newPartialNode(children)
		wrapper.collapse()
		node = wrapper
	}

	t.logger.Debugw("expanded tree", "kind", t.kind, "from", cube, "levels", k, "origin", origin, "side", newSide)
	t.root, t.origin, t.side = node, origin, int(newSide)
	return nil
}

// trimAsNeeded shrinks the covering cube while all content lies in one partial child of the
// root, never below the anchor cube.
func (t *Tree) trimAsNeeded() {
	for t.root.IsPartial() {
		only := -1
		for i, child := range t.root.children {
			if child.IsEmpty() {
				continue
			}
			if only >= 0 {
				return
			}
			only = i
		}
		if only < 0 || !t.root.children[only].IsPartial() {
			return
		}
		corner := t.kind.childCorner(t.origin, t.side, only)
		if t.hasAnchor && !t.kind.cube(corner, t.side/2).ContainsBox(t.anchor) {
			return
		}
		t.logger.Debugw("trimmed tree", "kind", t.kind, "origin", corner, "side", t.side/2)
		t.root, t.origin, t.side = t.root.children[only], corner, t.side/2
	}
}
