package regionedit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/multierr"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/regions/bitregion"
	"go.viam.com/regions/logging"
	"go.viam.com/regions/regiontree"
)

type fakeSaver struct {
	mu    sync.Mutex
	saves []*regiontree.Tree
	err   error
}

func (s *fakeSaver) Save(ctx context.Context, name string, tree *regiontree.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, tree.Clone())
	return nil
}

func (s *fakeSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func newEditor(t *testing.T, name string, saver Saver, clk clock.Clock) *Editor {
	t.Helper()
	logger := logging.NewTestLogger(t)
	tree, err := regiontree.New(regiontree.Octree,
		regiontree.NewBox(regiontree.Point{}, regiontree.Point{X: 15, Y: 15, Z: 15}), logger)
	test.That(t, err, test.ShouldBeNil)
	return NewEditor(name, tree, saver, clk, logger)
}

func box(minX, minY, minZ, maxX, maxY, maxZ int) regiontree.Box {
	return regiontree.NewBox(
		regiontree.Point{X: minX, Y: minY, Z: minZ},
		regiontree.Point{X: maxX, Y: maxY, Z: maxZ})
}

func TestMergeEdit(t *testing.T) {
	var pending []edit
	var merged int

	pending, merged = mergeEdit(pending, edit{op: opAddPoint, box: box(1, 1, 1, 1, 1, 1)})
	test.That(t, merged, test.ShouldEqual, 0)
	pending, merged = mergeEdit(pending, edit{op: opAddBox, box: box(8, 8, 8, 9, 9, 9)})
	test.That(t, merged, test.ShouldEqual, 0)

	// A repeat of the last edit is dropped.
	pending, merged = mergeEdit(pending, edit{op: opAddBox, box: box(8, 8, 8, 9, 9, 9)})
	test.That(t, merged, test.ShouldEqual, 1)
	test.That(t, pending, test.ShouldHaveLength, 2)

	// A covering removal replaces the point but keeps the box outside it.
	pending, merged = mergeEdit(pending, edit{op: opRemoveBox, box: box(0, 0, 0, 3, 3, 3)})
	test.That(t, merged, test.ShouldEqual, 1)
	test.That(t, pending, test.ShouldHaveLength, 2)
	test.That(t, pending[0].op, test.ShouldEqual, opAddBox)
	test.That(t, pending[1].op, test.ShouldEqual, opRemoveBox)

	// Bitmaps are queued as is, but a later covering box drops them.
	bm, err := bitregion.New(box(0, 0, 0, 1, 1, 1))
	test.That(t, err, test.ShouldBeNil)
	pending, merged = mergeEdit(pending, edit{op: opAddBitmap, box: bm.Bounds(), bitmap: bm})
	test.That(t, merged, test.ShouldEqual, 0)
	test.That(t, pending, test.ShouldHaveLength, 3)
	pending, merged = mergeEdit(pending, edit{op: opAddBox, box: box(0, 0, 0, 9, 9, 9)})
	test.That(t, merged, test.ShouldEqual, 3)
	test.That(t, pending, test.ShouldHaveLength, 1)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	saver := &fakeSaver{}
	editor := newEditor(t, "flush", saver, nil)

	test.That(t, editor.AddBox(box(0, 0, 0, 3, 3, 3)), test.ShouldBeNil)
	test.That(t, editor.RemovePoint(regiontree.Point{X: 1, Y: 1, Z: 1}), test.ShouldBeNil)
	test.That(t, editor.AddPoint(regiontree.Point{X: 20}), test.ShouldBeNil)
	test.That(t, editor.Pending(), test.ShouldEqual, 3)

	// Nothing is visible before a flush.
	test.That(t, editor.Contains(regiontree.Point{}), test.ShouldBeFalse)

	test.That(t, editor.Flush(ctx), test.ShouldBeNil)
	test.That(t, editor.Pending(), test.ShouldEqual, 0)
	test.That(t, editor.Contains(regiontree.Point{}), test.ShouldBeTrue)
	test.That(t, editor.Contains(regiontree.Point{X: 1, Y: 1, Z: 1}), test.ShouldBeFalse)
	test.That(t, editor.Contains(regiontree.Point{X: 20}), test.ShouldBeTrue)
	test.That(t, saver.count(), test.ShouldEqual, 1)
	test.That(t, saver.saves[0].Volume(), test.ShouldEqual, int64(64))

	// An empty flush of a clean tree does not save.
	test.That(t, editor.Flush(ctx), test.ShouldBeNil)
	test.That(t, saver.count(), test.ShouldEqual, 1)

	labels := prometheus.Labels{treeLabel: "flush", opLabel: opAddBox.String()}
	test.That(t, testutil.ToFloat64(regionEditsApplied.With(labels)), test.ShouldEqual, 1.0)
	test.That(t, testutil.ToFloat64(regionFlushCount.With(prometheus.Labels{treeLabel: "flush"})), test.ShouldEqual, 2.0)

	snapshot := editor.Snapshot()
	test.That(t, editor.AddBox(box(5, 5, 5, 6, 6, 6)), test.ShouldBeNil)
	test.That(t, editor.Flush(ctx), test.ShouldBeNil)
	test.That(t, snapshot.Contains(regiontree.Point{X: 5, Y: 5, Z: 5}), test.ShouldBeFalse)
}

func TestFlushErrors(t *testing.T) {
	ctx := context.Background()
	saver := &fakeSaver{err: errors.New("disk full")}
	editor := newEditor(t, "errors", saver, nil)

	err := editor.AddBox(regiontree.Box{Min: regiontree.Point{X: 3}, Max: regiontree.Point{X: 1}})
	test.That(t, errors.Is(err, regiontree.ErrInvalidBox), test.ShouldBeTrue)
	test.That(t, editor.Pending(), test.ShouldEqual, 0)

	test.That(t, editor.AddPoint(regiontree.Point{X: regiontree.MaxCoord + 1}), test.ShouldBeNil)
	test.That(t, editor.AddPoint(regiontree.Point{X: 2}), test.ShouldBeNil)

	err = editor.Flush(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	errs := multierr.Errors(err)
	test.That(t, errs, test.ShouldHaveLength, 2)
	test.That(t, errors.Is(errs[0], regiontree.ErrCoordinateOverflow), test.ShouldBeTrue)
	test.That(t, errs[1].Error(), test.ShouldContainSubstring, "disk full")

	// The edit after the failure still applied.
	test.That(t, editor.Contains(regiontree.Point{X: 2}), test.ShouldBeTrue)

	// A failed save is retried even with nothing queued.
	saver.mu.Lock()
	saver.err = nil
	saver.mu.Unlock()
	test.That(t, editor.Flush(ctx), test.ShouldBeNil)
	test.That(t, saver.count(), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(regionFlushErrors.With(prometheus.Labels{treeLabel: "errors"})), test.ShouldEqual, 2.0)
}

func TestConcurrentFlushOrder(t *testing.T) {
	ctx := context.Background()
	inner := regiontree.Point{X: 1, Y: 1, Z: 1}
	outer := regiontree.Point{X: 3, Y: 3, Z: 3}
	for i := 0; i < 20; i++ {
		editor := newEditor(t, "order", nil, nil)

		// A reader holds the tree while a background flush waits for it.
		editor.mu.Lock()
		test.That(t, editor.AddBox(box(0, 0, 0, 3, 3, 3)), test.ShouldBeNil)
		done := make(chan error, 1)
		go func() {
			done <- editor.Flush(ctx)
		}()
		time.Sleep(time.Millisecond)
		test.That(t, editor.RemoveBox(box(0, 0, 0, 1, 1, 1)), test.ShouldBeNil)
		editor.mu.Unlock()

		test.That(t, editor.Flush(ctx), test.ShouldBeNil)
		test.That(t, <-done, test.ShouldBeNil)
		test.That(t, editor.Contains(inner), test.ShouldBeFalse)
		test.That(t, editor.Contains(outer), test.ShouldBeTrue)
		test.That(t, editor.Snapshot().Volume(), test.ShouldEqual, int64(64-8))
	}
}

func TestEditorIsRegion(t *testing.T) {
	var region regiontree.Region = newEditor(t, "region", nil, nil)
	test.That(t, region.AddBox(box(0, 0, 0, 1, 1, 1)), test.ShouldBeNil)
	test.That(t, region.Contains(regiontree.Point{}), test.ShouldBeFalse)
}

func TestBitmapEdits(t *testing.T) {
	ctx := context.Background()
	editor := newEditor(t, "bitmap", nil, nil)

	bm, err := bitregion.New(box(0, 0, 0, 7, 7, 7))
	test.That(t, err, test.ShouldBeNil)
	bm.FillBox(box(0, 0, 0, 3, 7, 7))
	bm.Set(regiontree.Point{X: 6, Y: 6, Z: 6})

	test.That(t, editor.AddBitmap(bm), test.ShouldBeNil)
	test.That(t, editor.Flush(ctx), test.ShouldBeNil)
	test.That(t, editor.Snapshot().Volume(), test.ShouldEqual, int64(4*8*8+1))

	test.That(t, editor.RemoveBitmap(bm), test.ShouldBeNil)
	test.That(t, editor.Flush(ctx), test.ShouldBeNil)
	test.That(t, editor.Snapshot().Volume(), test.ShouldEqual, int64(0))
}

func TestPeriodicFlush(t *testing.T) {
	const interval = 5 * time.Second
	mockClock := clock.NewMock()
	saver := &fakeSaver{}
	editor := newEditor(t, "periodic", saver, mockClock)

	editor.Start(interval)
	editor.Start(interval)
	test.That(t, editor.AddPoint(regiontree.Point{X: 4, Y: 4, Z: 4}), test.ShouldBeNil)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		mockClock.Add(interval)
		test.That(tb, editor.Contains(regiontree.Point{X: 4, Y: 4, Z: 4}), test.ShouldBeTrue)
	})

	test.That(t, editor.AddPoint(regiontree.Point{X: 5, Y: 4, Z: 4}), test.ShouldBeNil)
	test.That(t, editor.Close(context.Background()), test.ShouldBeNil)
	test.That(t, editor.Contains(regiontree.Point{X: 5, Y: 4, Z: 4}), test.ShouldBeTrue)
	test.That(t, saver.count(), test.ShouldBeGreaterThanOrEqualTo, 2)
}
