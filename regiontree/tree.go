package regiontree

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"go.viam.com/regions/logging"
)

// Tree is a region tree with its covering cube. The cube starts at origin and spans side cells
// on each of the kind's axes; side is a power of two, or zero for a tree that has never held
// anything.
type Tree struct {
	logger logging.Logger
	kind   Kind
	root   *Node
	origin Point
	side   int

	// anchor is the cube the tree was created or decoded with. Trimming never shrinks the
	// tree below it.
	anchor    Box
	hasAnchor bool
}

// NewTree returns an empty zero-size tree. Its cube is established by the first addition.
func NewTree(kind Kind, logger logging.Logger) (*Tree, error) {
	if !kind.Valid() {
		return nil, errors.Errorf("invalid tree kind %d", kind)
	}
	return &Tree{logger: logger, kind: kind, root: newEmptyNode()}, nil
}

// New returns an empty tree whose cube is the smallest power of two anchored at bounds.Min that
// covers bounds.
func New(kind Kind, bounds Box, logger logging.Logger) (*Tree, error) {
	if !kind.Valid() {
		return nil, errors.Errorf("invalid tree kind %d", kind)
	}
	bounds = kind.normalizeBox(bounds)
	if !bounds.Valid() {
		return nil, errors.Wrapf(ErrInvalidBox, "tree bounds %v", bounds)
	}
	if !bounds.inRange() {
		return nil, errors.Wrapf(ErrCoordinateOverflow, "tree bounds %v", bounds)
	}
	var extent int64
	for axis := 0; axis < kind.Axes(); axis++ {
		extent = max(extent, int64(bounds.Size(axis)))
	}
	side := ceilPowerOfTwo(extent)
	if err := checkCube(kind, bounds.Min, side); err != nil {
		return nil, err
	}

	t := &Tree{logger: logger, kind: kind, root: newEmptyNode(), origin: bounds.Min, side: int(side)}
	t.anchor, t.hasAnchor = t.cube(), true
	return t, nil
}

// Decode builds a tree from its packed encoding. The encoding carries no bounds, so the caller
// supplies the cube the tree was saved with. Truncated data decodes with the missing part
// empty.
func Decode(kind Kind, origin Point, side int, data []byte, logger logging.Logger) (*Tree, error) {
	t, err := decodeHeaderless(kind, origin, side, len(data), logger)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	root, err := decodeNode(kind, r, PartialNode, 0)
	if err != nil {
		return nil, err
	}
	if r.Len() > 0 {
		logger.Debugw("ignoring trailing bytes after tree encoding", "kind", kind, "trailing", r.Len())
	}
	t.setDecodedRoot(root)
	return t, nil
}

// Read is Decode over a reader. Read failures other than a short stream are returned.
func Read(kind Kind, origin Point, side int, r io.Reader, logger logging.Logger) (*Tree, error) {
	t, err := decodeHeaderless(kind, origin, side, -1, logger)
	if err != nil {
		return nil, err
	}
	root, err := ReadNode(kind, r)
	if err != nil {
		return nil, err
	}
	t.setDecodedRoot(root)
	return t, nil
}

func decodeHeaderless(kind Kind, origin Point, side, dataLen int, logger logging.Logger) (*Tree, error) {
	t, err := NewTree(kind, logger)
	if err != nil {
		return nil, err
	}
	if side == 0 {
		if dataLen > 0 {
			return nil, errors.Wrap(ErrInvalidBounds, "zero-size tree with non-empty encoding")
		}
		return t, nil
	}
	if !isPowerOfTwo(side) {
		return nil, errors.Wrapf(ErrInvalidBounds, "side %d is not a power of two", side)
	}
	origin = kind.normalize(origin)
	if err := checkCube(kind, origin, int64(side)); err != nil {
		return nil, err
	}
	t.origin, t.side = origin, side
	t.anchor, t.hasAnchor = t.cube(), true
	return t, nil
}

func (t *Tree) setDecodedRoot(root *Node) {
	if t.side == 0 {
		t.root = newEmptyNode()
		return
	}
	pruneBelowCells(root, t.side)
	t.root = root
}

// pruneBelowCells drops subdivisions of single cells, which a well formed encoding never has.
func pruneBelowCells(n *Node, side int) {
	if !n.IsPartial() {
		return
	}
	if side <= 1 {
		n.setLeaf(EmptyNode)
		return
	}
	for _, child := range n.children {
		pruneBelowCells(child, side/2)
	}
	n.collapse()
}

func checkCube(kind Kind, origin Point, side int64) error {
	for axis := 0; axis < kind.Axes(); axis++ {
		lo := int64(origin.coord(axis))
		if lo < MinCoord || lo+side-1 > MaxCoord {
			return errors.Wrapf(ErrCoordinateOverflow, "cube at %v with side %d", origin, side)
		}
	}
	return nil
}

// Kind returns the tree's branching factor.
func (t *Tree) Kind() Kind {
	return t.kind
}

// Root returns the root node. It must not be modified.
func (t *Tree) Root() *Node {
	return t.root
}

// Origin returns the min corner of the covering cube.
func (t *Tree) Origin() Point {
	return t.origin
}

// Side returns the covering cube's side length, zero for a zero-size tree.
func (t *Tree) Side() int {
	return t.side
}

// Bounds returns the covering cube, and false for a zero-size tree.
func (t *Tree) Bounds() (Box, bool) {
	if t.side == 0 {
		return Box{}, false
	}
	return t.cube(), true
}

func (t *Tree) cube() Box {
	return t.kind.cube(t.origin, t.side)
}

// Contains reports whether the cell at p is included.
func (t *Tree) Contains(p Point) bool {
	if t.side == 0 {
		return false
	}
	p = t.kind.normalize(p)
	if !t.cube().Contains(p) {
		return false
	}
	n, corner, side := t.root, t.origin, t.side
	for n.IsPartial() {
		idx := t.kind.childIndex(corner, side, p)
		corner = t.kind.childCorner(corner, side, idx)
		side /= 2
		n = n.children[idx]
	}
	return n.IsFull()
}

// MarshalBinary returns the tree's packed encoding.
func (t *Tree) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeRoot(t.kind, t.root, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the tree's packed encoding to w.
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	data, err := t.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	c := *t
	c.root = t.root.Clone()
	return &c
}

// Equal reports whether two trees have the same kind, cube and structure.
func (t *Tree) Equal(o *Tree) bool {
	return t.kind == o.kind && t.origin == o.origin && t.side == o.side && t.root.Equal(o.root)
}

func (t *Tree) String() string {
	if t.side == 0 {
		return fmt.Sprintf("%s (zero-size)", t.kind)
	}
	return fmt.Sprintf("%s at %v side %d", t.kind, t.origin, t.side)
}
