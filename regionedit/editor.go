// Package regionedit batches edits to a region tree. Edits are queued without touching the tree,
// merged where a later edit makes an earlier one redundant, and applied together by Flush under
// one exclusive lock, optionally followed by a save.
package regionedit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/regions/logging"
	"go.viam.com/regions/regiontree"
	"go.viam.com/regions/utils"
)

// Saver persists a tree after a flush. *regionstore.Store is a Saver.
type Saver interface {
	Save(ctx context.Context, name string, tree *regiontree.Tree) error
}

// Editor queues edits for one tree. It is safe for concurrent use.
type Editor struct {
	name   string
	saver  Saver
	clock  clock.Clock
	logger logging.Logger

	// mu guards the tree and dirty. It is held for the whole of a flush.
	mu    sync.Mutex
	tree  *regiontree.Tree
	dirty bool

	pendingMu sync.Mutex
	pending   []edit

	workersMu sync.Mutex
	workers   utils.StoppableWorkers
}

// NewEditor returns an editor for tree. saver may be nil to keep the tree in memory only; clk may
// be nil to use the wall clock.
func NewEditor(name string, tree *regiontree.Tree, saver Saver, clk clock.Clock, logger logging.Logger) *Editor {
	if clk == nil {
		clk = clock.New()
	}
	return &Editor{
		name:   name,
		saver:  saver,
		clock:  clk,
		logger: logger,
		tree:   tree,
	}
}

// Name returns the tree's name.
func (e *Editor) Name() string {
	return e.name
}

// AddPoint queues including the cell at p.
func (e *Editor) AddPoint(p regiontree.Point) error {
	e.enqueue(edit{op: opAddPoint, box: regiontree.PointBox(p)})
	return nil
}

// RemovePoint queues excluding the cell at p.
func (e *Editor) RemovePoint(p regiontree.Point) error {
	e.enqueue(edit{op: opRemovePoint, box: regiontree.PointBox(p)})
	return nil
}

// AddBox queues including every cell of b.
func (e *Editor) AddBox(b regiontree.Box) error {
	if !b.Valid() {
		return errors.Wrapf(regiontree.ErrInvalidBox, "%v", b)
	}
	e.enqueue(edit{op: opAddBox, box: b})
	return nil
}

// RemoveBox queues excluding every cell of b.
func (e *Editor) RemoveBox(b regiontree.Box) error {
	if !b.Valid() {
		return errors.Wrapf(regiontree.ErrInvalidBox, "%v", b)
	}
	e.enqueue(edit{op: opRemoveBox, box: b})
	return nil
}

// AddBitmap queues including every set cell of bm. bm must not change until the next flush.
func (e *Editor) AddBitmap(bm regiontree.Bitmap) error {
	if !bm.Bounds().Valid() {
		return errors.Wrapf(regiontree.ErrInvalidBox, "bitmap bounds %v", bm.Bounds())
	}
	e.enqueue(edit{op: opAddBitmap, box: bm.Bounds(), bitmap: bm})
	return nil
}

// RemoveBitmap queues excluding every set cell of bm. bm must not change until the next flush.
func (e *Editor) RemoveBitmap(bm regiontree.Bitmap) error {
	if !bm.Bounds().Valid() {
		return errors.Wrapf(regiontree.ErrInvalidBox, "bitmap bounds %v", bm.Bounds())
	}
	e.enqueue(edit{op: opRemoveBitmap, box: bm.Bounds(), bitmap: bm})
	return nil
}

func (e *Editor) enqueue(ed edit) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	var merged int
	e.pending, merged = mergeEdit(e.pending, ed)
	if merged > 0 {
		instrumentMerged(e.name, merged)
	}
	instrumentPending(e.name, len(e.pending))
}

// Pending returns the number of queued edits.
func (e *Editor) Pending() int {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	return len(e.pending)
}

// Contains reports whether p is included in the flushed tree. Queued edits are not visible.
func (e *Editor) Contains(p regiontree.Point) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.Contains(p)
}

// Snapshot returns a copy of the flushed tree.
func (e *Editor) Snapshot() *regiontree.Tree {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.Clone()
}

// Flush applies every queued edit in order and then saves the tree if it changed or an earlier
// save failed. Failed edits do not stop later ones; all failures are returned together.
func (e *Editor) Flush(ctx context.Context) error {
	// The batch is taken under mu so concurrent flushes apply batches in the order they were
	// queued.
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pendingMu.Lock()
	batch := e.pending
	e.pending = nil
	instrumentPending(e.name, 0)
	e.pendingMu.Unlock()
	instrumentFlush(e.name)

	var errs error
	var failed int
	for _, ed := range batch {
		if err := ed.apply(e.tree); err != nil {
			failed++
			errs = multierr.Append(errs, errors.Wrapf(err, "%s %v", ed.op, ed.box))
			continue
		}
		e.dirty = true
		instrumentApplied(e.name, ed.op.String())
	}

	saved := false
	if e.saver != nil && e.dirty {
		if err := e.saver.Save(ctx, e.name, e.tree); err != nil {
			failed++
			errs = multierr.Append(errs, errors.Wrapf(err, "saving %s", e.name))
		} else {
			e.dirty = false
			saved = true
		}
	}
	if failed > 0 {
		instrumentFlushErrors(e.name, failed)
	}
	if len(batch) > 0 || failed > 0 {
		e.logger.CDebugw(ctx, "flushed edits", "tree", e.name, "edits", len(batch), "failed", failed, "saved", saved)
	}
	return errs
}

// Start flushes every interval in the background until Close. Calling Start again does nothing.
func (e *Editor) Start(interval time.Duration) {
	e.workersMu.Lock()
	defer e.workersMu.Unlock()
	if e.workers != nil {
		return
	}
	e.workers = utils.NewStoppableWorkerWithTicker(e.clock, interval, func(ctx context.Context) {
		if err := e.Flush(ctx); err != nil {
			e.logger.Warnw("periodic flush failed", "tree", e.name, "error", err)
		}
	})
}

// Close stops the background flusher, if any, and flushes what remains.
func (e *Editor) Close(ctx context.Context) error {
	e.workersMu.Lock()
	workers := e.workers
	e.workers = nil
	e.workersMu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return e.Flush(ctx)
}
