package regionedit

import "go.viam.com/regions/regiontree"

type op uint8

const (
	opAddPoint = op(iota)
	opRemovePoint
	opAddBox
	opRemoveBox
	opAddBitmap
	opRemoveBitmap
)

func (o op) String() string {
	switch o {
	case opAddPoint:
		return "add_point"
	case opRemovePoint:
		return "remove_point"
	case opAddBox:
		return "add_box"
	case opRemoveBox:
		return "remove_box"
	case opAddBitmap:
		return "add_bitmap"
	case opRemoveBitmap:
		return "remove_bitmap"
	default:
		return "unknown"
	}
}

// edit is one queued operation. box is the point, the box, or the bitmap's bounds.
type edit struct {
	op     op
	box    regiontree.Box
	bitmap regiontree.Bitmap
}

func (ed edit) isBitmap() bool {
	return ed.bitmap != nil
}

func (ed edit) apply(tree *regiontree.Tree) error {
	switch ed.op {
	case opAddPoint:
		return tree.AddPoint(ed.box.Min)
	case opRemovePoint:
		return tree.RemovePoint(ed.box.Min)
	case opAddBox:
		return tree.AddBox(ed.box)
	case opRemoveBox:
		return tree.RemoveBox(ed.box)
	case opAddBitmap:
		return tree.AddBitmap(ed.bitmap)
	default:
		return tree.RemoveBitmap(ed.bitmap)
	}
}

// mergeEdit appends ed to pending and returns the new queue with the number of edits dropped. A
// point or box edit sets every cell it covers, so earlier edits that lie inside it are dropped,
// as is an exact repeat of the last edit.
func mergeEdit(pending []edit, ed edit) ([]edit, int) {
	if ed.isBitmap() {
		return append(pending, ed), 0
	}
	if n := len(pending); n > 0 && !pending[n-1].isBitmap() && pending[n-1].op == ed.op && pending[n-1].box == ed.box {
		return pending, 1
	}
	kept := pending[:0]
	for _, p := range pending {
		if ed.box.ContainsBox(p.box) {
			continue
		}
		kept = append(kept, p)
	}
	merged := len(pending) - len(kept)
	return append(kept, ed), merged
}
