package regiontree

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"go.viam.com/test"

	"go.viam.com/regions/logging"
)

func TestQuadtreeSingleCellEncoding(t *testing.T) {
	logger := logging.NewTestLogger(t)
	tree, err := New(Quadtree, NewBox(Point{}, Point{X: 1, Z: 1}), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Side(), test.ShouldEqual, 2)

	test.That(t, tree.AddBox(PointBox(Point{})), test.ShouldBeNil)
	test.That(t, tree.Contains(Point{}), test.ShouldBeTrue)
	test.That(t, tree.Contains(Point{X: 1}), test.ShouldBeFalse)

	data, err := tree.MarshalBinary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0b10010101})
}

func TestEncodePreOrder(t *testing.T) {
	logger := logging.NewTestLogger(t)
	tree, err := New(Quadtree, NewBox(Point{}, Point{X: 3, Z: 3}), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.AddPoint(Point{}), test.ShouldBeNil)

	// Root: partial, empty, empty, empty. Then child 0: full, empty, empty, empty.
	data, err := tree.MarshalBinary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0x15, 0x95})

	var buf bytes.Buffer
	n, err := tree.WriteTo(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, int64(2))
	test.That(t, buf.Bytes(), test.ShouldResemble, data)
}

func TestRootEncoding(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, kind := range []Kind{Quadtree, Octree} {
		t.Run(kind.String(), func(t *testing.T) {
			tree, err := New(kind, NewBox(Point{}, Point{X: 7, Y: 7, Z: 7}), logger)
			test.That(t, err, test.ShouldBeNil)

			data, err := tree.MarshalBinary()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, data, test.ShouldBeEmpty)

			test.That(t, tree.AddBox(NewBox(Point{}, Point{X: 7, Y: 7, Z: 7})), test.ShouldBeNil)
			test.That(t, tree.Root().IsFull(), test.ShouldBeTrue)
			data, err = tree.MarshalBinary()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, data, test.ShouldResemble, bytes.Repeat([]byte{0xAA}, kind.BytesPerNode()))

			decoded, err := Decode(kind, tree.Origin(), tree.Side(), data, logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, decoded.Root().IsFull(), test.ShouldBeTrue)
			test.That(t, decoded.Equal(tree), test.ShouldBeTrue)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, kind := range []Kind{Quadtree, Octree} {
		t.Run(kind.String(), func(t *testing.T) {
			tree, err := New(kind, NewBox(Point{X: -8, Y: -8, Z: -8}, Point{X: 7, Y: 7, Z: 7}), logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, tree.AddBox(NewBox(Point{X: -3, Y: -2, Z: -5}, Point{X: 4, Y: 1, Z: 2})), test.ShouldBeNil)
			test.That(t, tree.RemoveBox(NewBox(Point{X: 0, Y: 0, Z: 0}, Point{X: 1, Y: 1, Z: 1})), test.ShouldBeNil)
			test.That(t, tree.AddPoint(Point{X: 7, Y: -8, Z: 7}), test.ShouldBeNil)

			data, err := tree.MarshalBinary()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(data), test.ShouldEqual, tree.Stats().EncodedSize)

			decoded, err := Decode(kind, tree.Origin(), tree.Side(), data, logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, decoded.Equal(tree), test.ShouldBeTrue)

			read, err := Read(kind, tree.Origin(), tree.Side(), iotest.OneByteReader(bytes.NewReader(data)), logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, read.Equal(tree), test.ShouldBeTrue)

			again, err := decoded.MarshalBinary()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, again, test.ShouldResemble, data)
		})
	}
}

func TestDecodeDegenerateInput(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("empty data", func(t *testing.T) {
		tree, err := Decode(Octree, Point{}, 8, nil, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Root().IsEmpty(), test.ShouldBeTrue)
		test.That(t, tree.Side(), test.ShouldEqual, 8)
	})

	t.Run("truncated", func(t *testing.T) {
		tree, err := New(Octree, NewBox(Point{}, Point{X: 15, Y: 15, Z: 15}), logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.AddPoint(Point{X: 1, Y: 2, Z: 3}), test.ShouldBeNil)
		test.That(t, tree.AddPoint(Point{X: 14, Y: 9, Z: 3}), test.ShouldBeNil)
		data, err := tree.MarshalBinary()
		test.That(t, err, test.ShouldBeNil)

		for cut := 0; cut < len(data); cut++ {
			decoded, err := Decode(Octree, tree.Origin(), tree.Side(), data[:cut], logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, decoded.CheckInvariants(), test.ShouldBeNil)
			test.That(t, decoded.Volume(), test.ShouldBeLessThan, tree.Volume())
		}
	})

	t.Run("unused tag", func(t *testing.T) {
		// Four partial children with nothing after them decode as empty.
		tree, err := Decode(Quadtree, Point{}, 2, []byte{0xFF}, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Root().IsEmpty(), test.ShouldBeTrue)
	})

	t.Run("non-canonical", func(t *testing.T) {
		// A partial root whose children are all full.
		tree, err := Decode(Quadtree, Point{}, 4, []byte{0x00, 0xAA, 0xAA, 0xAA, 0xAA}, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Root().IsFull(), test.ShouldBeTrue)
		test.That(t, tree.CheckInvariants(), test.ShouldBeNil)
	})

	t.Run("subdivided cell", func(t *testing.T) {
		tree, err := Decode(Quadtree, Point{}, 2, []byte{0x00, 0x95}, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.Root().IsEmpty(), test.ShouldBeTrue)
	})

	t.Run("bad bounds", func(t *testing.T) {
		_, err := Decode(Quadtree, Point{}, 3, nil, logger)
		test.That(t, errors.Is(err, ErrInvalidBounds), test.ShouldBeTrue)
		_, err = Decode(Quadtree, Point{}, 0, []byte{0x95}, logger)
		test.That(t, errors.Is(err, ErrInvalidBounds), test.ShouldBeTrue)
		_, err = Decode(Octree, Point{X: MaxCoord}, 2, nil, logger)
		test.That(t, errors.Is(err, ErrCoordinateOverflow), test.ShouldBeTrue)
	})

	t.Run("read error", func(t *testing.T) {
		_, err := Read(Quadtree, Point{}, 2, iotest.ErrReader(errors.New("disk gone")), logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "disk gone")
	})
}

func TestUnpackTags(t *testing.T) {
	test.That(t, unpackTags(0x95), test.ShouldResemble, []NodeType{FullNode, EmptyNode, EmptyNode, EmptyNode})
	test.That(t, unpackTags(0x1B), test.ShouldResemble, []NodeType{PartialNode, EmptyNode, FullNode, PartialNode})
	test.That(t, packTags([]*Node{newFullNode(), newEmptyNode(), newEmptyNode(), newEmptyNode()}), test.ShouldEqual, byte(0x95))
}

func TestNodeCodec(t *testing.T) {
	n := DecodeNode(Quadtree, []byte{0x15, 0x95})
	test.That(t, n.IsPartial(), test.ShouldBeTrue)
	test.That(t, n.Children()[0].IsPartial(), test.ShouldBeTrue)
	test.That(t, n.Children()[0].Children()[0].IsFull(), test.ShouldBeTrue)
	test.That(t, n.Children()[1].IsEmpty(), test.ShouldBeTrue)

	var buf bytes.Buffer
	test.That(t, EncodeNode(Quadtree, n, &buf), test.ShouldBeNil)
	test.That(t, buf.Bytes(), test.ShouldResemble, []byte{0x15, 0x95})

	// Four full children collapse into a full leaf, which encodes as nothing.
	full := DecodeNode(Quadtree, []byte{0xaa})
	test.That(t, full.IsFull(), test.ShouldBeTrue)
	buf.Reset()
	test.That(t, EncodeNode(Quadtree, full, &buf), test.ShouldBeNil)
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	test.That(t, DecodeNode(Quadtree, nil).IsEmpty(), test.ShouldBeTrue)
	test.That(t, DecodeNode(Octree, []byte{0x15}).IsEmpty(), test.ShouldBeTrue)

	err := EncodeNode(Octree, n, &buf)
	test.That(t, errors.Is(err, ErrInvariantViolation), test.ShouldBeTrue)
}
