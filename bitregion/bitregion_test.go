package bitregion

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/regions/logging"
	"go.viam.com/regions/regiontree"
)

func box(minX, minY, minZ, maxX, maxY, maxZ int) regiontree.Box {
	return regiontree.NewBox(
		regiontree.Point{X: minX, Y: minY, Z: minZ},
		regiontree.Point{X: maxX, Y: maxY, Z: maxZ})
}

func TestNew(t *testing.T) {
	_, err := New(regiontree.Box{Min: regiontree.Point{Z: 1}})
	test.That(t, errors.Is(err, regiontree.ErrInvalidBox), test.ShouldBeTrue)

	_, err = New(box(0, 0, 0, 65535, 1, 65535))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "more than")

	br, err := New(box(0, 0, 0, 3, 3, 3))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, br.Count(), test.ShouldEqual, 0)
	test.That(t, br.Bounds(), test.ShouldResemble, box(0, 0, 0, 3, 3, 3))
}

func TestIndex(t *testing.T) {
	br, err := New(box(1, 2, 3, 3, 4, 5))
	test.That(t, err, test.ShouldBeNil)

	for _, tc := range []struct {
		p    regiontree.Point
		want int
	}{
		{regiontree.Point{X: 1, Y: 2, Z: 3}, 0},
		{regiontree.Point{X: 3, Y: 2, Z: 3}, 2},
		{regiontree.Point{X: 1, Y: 2, Z: 4}, 3},
		{regiontree.Point{X: 1, Y: 3, Z: 3}, 9},
		{regiontree.Point{X: 2, Y: 3, Z: 4}, 13},
		{regiontree.Point{X: 3, Y: 4, Z: 5}, 26},
	} {
		idx, ok := br.Index(tc.p)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, idx, test.ShouldEqual, tc.want)
	}

	idx, ok := br.Index(regiontree.Point{X: 0, Y: 2, Z: 3})
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, idx, test.ShouldEqual, -1)
	test.That(t, br.Set(regiontree.Point{X: 9}), test.ShouldBeFalse)
	test.That(t, br.Get(regiontree.Point{X: 9}), test.ShouldBeFalse)
}

func TestSetAndClear(t *testing.T) {
	br, err := New(box(0, 0, 0, 7, 7, 7))
	test.That(t, err, test.ShouldBeNil)

	br.FillBox(box(0, 0, 0, 3, 7, 7))
	test.That(t, br.Count(), test.ShouldEqual, 256)

	// Only the part inside the bitmap is touched.
	br.ClearBox(box(-4, -4, -4, 1, 7, 7))
	test.That(t, br.Count(), test.ShouldEqual, 128)
	test.That(t, br.Get(regiontree.Point{X: 1}), test.ShouldBeFalse)
	test.That(t, br.Get(regiontree.Point{X: 2}), test.ShouldBeTrue)

	clone := br.Clone()
	test.That(t, br.Clear(regiontree.Point{X: 2}), test.ShouldBeTrue)
	test.That(t, br.Count(), test.ShouldEqual, 127)
	test.That(t, clone.Count(), test.ShouldEqual, 128)
	test.That(t, clone.Get(regiontree.Point{X: 2}), test.ShouldBeTrue)
}

func TestCompare(t *testing.T) {
	br, err := New(box(0, 0, 0, 7, 7, 7))
	test.That(t, err, test.ShouldBeNil)
	br.FillBox(box(0, 0, 0, 3, 7, 7))

	test.That(t, br.Compare(box(0, 0, 0, 3, 7, 7)), test.ShouldEqual, regiontree.UniformTrue)
	test.That(t, br.Compare(box(4, 0, 0, 7, 7, 7)), test.ShouldEqual, regiontree.UniformFalse)
	test.That(t, br.Compare(box(0, 0, 0, 7, 7, 7)), test.ShouldEqual, regiontree.Mixed)
	test.That(t, br.Compare(box(100, 0, 0, 101, 1, 1)), test.ShouldEqual, regiontree.UniformFalse)
	// Only the intersection counts.
	test.That(t, br.Compare(box(-5, -5, -5, 1, 1, 1)), test.ShouldEqual, regiontree.UniformTrue)

	br.Set(regiontree.Point{X: 6, Y: 6, Z: 6})
	test.That(t, br.Compare(box(4, 0, 0, 7, 7, 7)), test.ShouldEqual, regiontree.Mixed)
	test.That(t, br.Differs(box(4, 0, 0, 7, 7, 7), false), test.ShouldBeTrue)
	test.That(t, br.Differs(box(4, 0, 0, 7, 5, 7), false), test.ShouldBeFalse)
	test.That(t, br.Differs(box(0, 0, 0, 3, 7, 7), true), test.ShouldBeFalse)
}

func TestFromVectors(t *testing.T) {
	_, err := FromVectors(regiontree.Octree, nil)
	test.That(t, err, test.ShouldNotBeNil)

	vs := []r3.Vector{{X: 0.5, Y: 9, Z: 0.2}, {X: 2.7, Y: -3, Z: 1.9}, {X: -0.5, Y: 0, Z: 0}}

	quad, err := FromVectors(regiontree.Quadtree, vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, quad.Bounds(), test.ShouldResemble, box(-1, 0, 0, 2, 0, 1))
	test.That(t, quad.Count(), test.ShouldEqual, 3)
	test.That(t, quad.Get(regiontree.Point{X: 2, Z: 1}), test.ShouldBeTrue)
	test.That(t, quad.Get(regiontree.Point{X: -1}), test.ShouldBeTrue)

	oct, err := FromVectors(regiontree.Octree, vs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, oct.Bounds(), test.ShouldResemble, box(-1, -3, 0, 2, 9, 1))
	test.That(t, oct.Count(), test.ShouldEqual, 3)
	test.That(t, oct.Get(regiontree.Point{Y: 9}), test.ShouldBeTrue)
}

func TestMergeIntoTree(t *testing.T) {
	logger := logging.NewTestLogger(t)
	rng := rand.New(rand.NewPCG(7, 11))

	for _, kind := range []regiontree.Kind{regiontree.Quadtree, regiontree.Octree} {
		t.Run(kind.String(), func(t *testing.T) {
			bounds := box(-3, 0, -5, 9, 9, 6)
			if kind == regiontree.Quadtree {
				bounds.Max.Y = 0
			}
			br, err := New(bounds)
			test.That(t, err, test.ShouldBeNil)
			br.FillBox(box(0, 0, 0, 3, 3, 3))
			for i := 0; i < 200; i++ {
				br.Set(regiontree.Point{
					X: bounds.Min.X + rng.IntN(bounds.Size(regiontree.AxisX)),
					Y: bounds.Min.Y + rng.IntN(bounds.Size(regiontree.AxisY)),
					Z: bounds.Min.Z + rng.IntN(bounds.Size(regiontree.AxisZ)),
				})
			}

			tree, err := regiontree.NewTree(kind, logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, tree.AddBitmap(br), test.ShouldBeNil)
			test.That(t, tree.CheckInvariants(), test.ShouldBeNil)
			test.That(t, tree.Volume(), test.ShouldEqual, int64(br.Count()))
			for x := bounds.Min.X; x <= bounds.Max.X; x++ {
				for y := bounds.Min.Y; y <= bounds.Max.Y; y++ {
					for z := bounds.Min.Z; z <= bounds.Max.Z; z++ {
						p := regiontree.Point{X: x, Y: y, Z: z}
						if tree.Contains(p) != br.Get(p) {
							t.Fatalf("Contains(%v) = %v, want %v", p, tree.Contains(p), br.Get(p))
						}
					}
				}
			}

			test.That(t, tree.RemoveBitmap(br), test.ShouldBeNil)
			test.That(t, tree.Volume(), test.ShouldEqual, int64(0))
		})
	}
}
