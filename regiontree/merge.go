package regiontree

import "github.com/pkg/errors"

// AddBitmap includes every cell whose bit is set in bm, growing the tree only as far as the set
// cells reach. Quadtrees read the bitmap's Y=0 plane.
// Uniform runs of the bitmap are merged as whole nodes instead of cell by cell.
func (t *Tree) AddBitmap(bm Bitmap) error {
	bounds, err := t.checkBox(bm.Bounds())
	if err != nil {
		return errors.Wrap(err, "bitmap bounds")
	}
	bounds, ok := setExtent(t.kind, bm, bounds)
	if !ok {
		return nil
	}
	if err := t.expand(bounds); err != nil {
		return err
	}
	mergeBitmap(t.kind, t.root, t.origin, t.side, bm, bounds, FullNode)
	return nil
}

// setExtent returns the smallest box within bounds holding every set bit of bm. It reports
// false when no bit is set.
func setExtent(kind Kind, bm Bitmap, bounds Box) (Box, bool) {
	switch bm.Compare(bounds) {
	case UniformFalse:
		return Box{}, false
	case UniformTrue:
		return bounds, true
	case Mixed:
	}
	ext := bounds
	for axis := 0; axis < kind.Axes(); axis++ {
		low, high := ext.Min.coord(axis), ext.Max.coord(axis)
		for low < high {
			mid := low + (high-low)/2
			slab := Box{Min: ext.Min, Max: ext.Max.with(axis, mid)}
			if bm.Compare(slab) == UniformFalse {
				low = mid + 1
			} else {
				high = mid
			}
		}
		ext.Min = ext.Min.with(axis, low)

		low, high = ext.Min.coord(axis), ext.Max.coord(axis)
		for low < high {
			mid := low + (high-low+1)/2
			slab := Box{Min: ext.Min.with(axis, mid), Max: ext.Max}
			if bm.Compare(slab) == UniformFalse {
				high = mid - 1
			} else {
				low = mid
			}
		}
		ext.Max = ext.Max.with(axis, high)
	}
	return ext, true
}

// RemoveBitmap excludes every cell whose bit is set in bm.
func (t *Tree) RemoveBitmap(bm Bitmap) error {
	bounds, err := t.checkBox(bm.Bounds())
	if err != nil {
		return errors.Wrap(err, "bitmap bounds")
	}
	if t.side == 0 {
		return nil
	}
	clipped, ok := bounds.Intersect(t.cube())
	if !ok {
		return nil
	}
	mergeBitmap(t.kind, t.root, t.origin, t.side, bm, clipped, EmptyNode)
	t.trimAsNeeded()
	return nil
}

func mergeBitmap(kind Kind, n *Node, corner Point, side int, bm Bitmap, bounds Box, value NodeType) {
	if n.nodeType == value {
		return
	}
	cube := kind.cube(corner, side)
	inter, ok := cube.Intersect(bounds)
	if !ok {
		return
	}
	switch bm.Compare(inter) {
	case UniformFalse:
		return
	case UniformTrue:
		if bounds.ContainsBox(cube) {
			n.setLeaf(value)
		} else {
			setBox(kind, n, corner, side, inter, value)
		}
		return
	case Mixed:
	}
	if side == 1 {
		// A well behaved bitmap never reports a single cell as mixed.
		return
	}
	n.split(kind.Fanout())
	for i, child := range n.children {
		mergeBitmap(kind, child, kind.childCorner(corner, side, i), side/2, bm, bounds, value)
	}
	n.collapse()
}
