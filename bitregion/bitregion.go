// Package bitregion provides flat bitmaps over integer boxes. They are the bitmaps merged into
// region trees by AddBitmap and RemoveBitmap.
package bitregion

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/regions/regiontree"
)

// MaxCells bounds the size of a single bitmap.
const MaxCells = 1 << 32

// BitRegion is a bitmap over an inclusive box. Bits are laid out X fastest, then Z, then Y.
type BitRegion struct {
	box        regiontree.Box
	sx, sz, sy int
	bits       *bitset.BitSet
}

// New returns a bitmap over box with every bit clear.
func New(box regiontree.Box) (*BitRegion, error) {
	if !box.Valid() {
		return nil, errors.Wrapf(regiontree.ErrInvalidBox, "bitmap bounds %v", box)
	}
	cells := box.Volume()
	if cells > MaxCells {
		return nil, errors.Errorf("bitmap over %v has %d cells, more than %d", box, cells, MaxCells)
	}
	return &BitRegion{
		box:  box,
		sx:   box.Size(regiontree.AxisX),
		sz:   box.Size(regiontree.AxisZ),
		sy:   box.Size(regiontree.AxisY),
		bits: bitset.New(uint(cells)),
	}, nil
}

// FromVectors returns a bitmap covering the cells that hold the given positions, with those
// cells set. For quadtrees every position is flattened onto Y=0.
func FromVectors(kind regiontree.Kind, vs []r3.Vector) (*BitRegion, error) {
	if len(vs) == 0 {
		return nil, errors.New("no positions to build a bitmap from")
	}
	points := make([]regiontree.Point, len(vs))
	for i, v := range vs {
		p := regiontree.PointFromVector(v)
		if kind == regiontree.Quadtree {
			p.Y = 0
		}
		points[i] = p
	}
	box := regiontree.PointBox(points[0])
	for _, p := range points[1:] {
		box = box.Union(regiontree.PointBox(p))
	}
	br, err := New(box)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		br.Set(p)
	}
	return br, nil
}

// Bounds returns the box the bitmap covers.
func (br *BitRegion) Bounds() regiontree.Box {
	return br.box
}

// Index returns the bit index of p, and false if p is outside the bitmap.
func (br *BitRegion) Index(p regiontree.Point) (int, bool) {
	if !br.box.Contains(p) {
		return -1, false
	}
	x, y, z := p.X-br.box.Min.X, p.Y-br.box.Min.Y, p.Z-br.box.Min.Z
	return (y*br.sz+z)*br.sx + x, true
}

// Get reports whether p's bit is set. Points outside the bitmap are clear.
func (br *BitRegion) Get(p regiontree.Point) bool {
	idx, ok := br.Index(p)
	return ok && br.bits.Test(uint(idx))
}

// Set sets p's bit. It reports false if p is outside the bitmap.
func (br *BitRegion) Set(p regiontree.Point) bool {
	idx, ok := br.Index(p)
	if ok {
		br.bits.Set(uint(idx))
	}
	return ok
}

// Clear clears p's bit. It reports false if p is outside the bitmap.
func (br *BitRegion) Clear(p regiontree.Point) bool {
	idx, ok := br.Index(p)
	if ok {
		br.bits.Clear(uint(idx))
	}
	return ok
}

// FillBox sets every bit in b that lies within the bitmap.
func (br *BitRegion) FillBox(b regiontree.Box) {
	br.eachRow(b, func(start, end uint) bool {
		for i := start; i <= end; i++ {
			br.bits.Set(i)
		}
		return true
	})
}

// ClearBox clears every bit in b that lies within the bitmap.
func (br *BitRegion) ClearBox(b regiontree.Box) {
	br.eachRow(b, func(start, end uint) bool {
		for i := start; i <= end; i++ {
			br.bits.Clear(i)
		}
		return true
	})
}

// Count returns the number of set bits.
func (br *BitRegion) Count() int {
	return int(br.bits.Count())
}

// Clone returns a deep copy of the bitmap.
func (br *BitRegion) Clone() *BitRegion {
	c := *br
	c.bits = br.bits.Clone()
	return &c
}

// Compare inspects the bits over target and the bitmap's intersection. An empty intersection is
// uniformly false.
func (br *BitRegion) Compare(target regiontree.Box) regiontree.Comparison {
	inter, ok := target.Intersect(br.box)
	if !ok {
		return regiontree.UniformFalse
	}
	first := br.Get(inter.Min)
	if br.Differs(inter, first) {
		return regiontree.Mixed
	}
	if first {
		return regiontree.UniformTrue
	}
	return regiontree.UniformFalse
}

// Differs reports whether any bit over target and the bitmap's intersection is not expected.
func (br *BitRegion) Differs(target regiontree.Box, expected bool) bool {
	differs := false
	br.eachRow(target, func(start, end uint) bool {
		var next uint
		var found bool
		if expected {
			next, found = br.bits.NextClear(start)
		} else {
			next, found = br.bits.NextSet(start)
		}
		differs = found && next <= end
		return !differs
	})
	return differs
}

// eachRow calls fn with the inclusive bit range of every X run of target within the bitmap,
// stopping when fn returns false.
func (br *BitRegion) eachRow(target regiontree.Box, fn func(start, end uint) bool) {
	inter, ok := target.Intersect(br.box)
	if !ok {
		return
	}
	for y := inter.Min.Y; y <= inter.Max.Y; y++ {
		for z := inter.Min.Z; z <= inter.Max.Z; z++ {
			start, _ := br.Index(regiontree.Point{X: inter.Min.X, Y: y, Z: z})
			if !fn(uint(start), uint(start+inter.Size(regiontree.AxisX)-1)) {
				return
			}
		}
	}
}
