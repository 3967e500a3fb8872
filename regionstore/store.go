// Package regionstore persists region trees as files in a directory. A tree's encoding carries no
// bounds, so each file name records the tree's name, cube origin and side:
//
//	<name>_<x>_<z>_<side>.qtree
//	<name>_<x>_<z>_<y>_<side>.otree
package regionstore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/regions/logging"
	"go.viam.com/regions/regiontree"
	"go.viam.com/regions/utils"
)

const partSuffix = ".part"

// ErrNotFound is returned when no file holds the named tree.
var ErrNotFound = errors.New("region tree not found")

// Entry describes one stored tree file.
type Entry struct {
	Name    string
	Kind    regiontree.Kind
	Origin  regiontree.Point
	Side    int
	Path    string
	Size    int64
	ModTime time.Time
}

// Bounds returns the stored tree's cube, and false for a zero-size tree.
func (e Entry) Bounds() (regiontree.Box, bool) {
	if e.Side == 0 {
		return regiontree.Box{}, false
	}
	return e.Kind.Cube(e.Origin, e.Side), true
}

// FileName returns the base file name a tree is stored under.
func FileName(name string, kind regiontree.Kind, origin regiontree.Point, side int) string {
	coords := []string{name, strconv.Itoa(origin.X), strconv.Itoa(origin.Z)}
	if kind == regiontree.Octree {
		coords = append(coords, strconv.Itoa(origin.Y))
	}
	coords = append(coords, strconv.Itoa(side))
	return strings.Join(coords, "_") + kind.Ext()
}

// ParseFileName parses a base file name written by FileName. The numbers are read from the
// right, so names may contain underscores.
func ParseFileName(base string) (Entry, error) {
	var kind regiontree.Kind
	switch filepath.Ext(base) {
	case regiontree.Quadtree.Ext():
		kind = regiontree.Quadtree
	case regiontree.Octree.Ext():
		kind = regiontree.Octree
	default:
		return Entry{}, errors.Errorf("%q is not a region tree file", base)
	}

	parts := strings.Split(strings.TrimSuffix(base, filepath.Ext(base)), "_")
	numCount := kind.Axes() + 1
	if len(parts) <= numCount {
		return Entry{}, errors.Errorf("%q is missing tree bounds", base)
	}
	nums := make([]int, numCount)
	for i, part := range parts[len(parts)-numCount:] {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Entry{}, errors.Wrapf(err, "parsing bounds of %q", base)
		}
		nums[i] = n
	}

	e := Entry{
		Name:   strings.Join(parts[:len(parts)-numCount], "_"),
		Kind:   kind,
		Origin: regiontree.Point{X: nums[0], Z: nums[1]},
		Side:   nums[numCount-1],
	}
	if kind == regiontree.Octree {
		e.Origin.Y = nums[2]
	}
	if e.Name == "" {
		return Entry{}, errors.Errorf("%q has no tree name", base)
	}
	if e.Side < 0 {
		return Entry{}, errors.Errorf("%q has negative side", base)
	}
	return e, nil
}

func validateName(name string) error {
	if name == "" {
		return errors.New("tree name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.Errorf("tree name %q must not be a path", name)
	}
	return nil
}

// Store reads and writes tree files in one directory.
type Store struct {
	dir    string
	logger logging.Logger

	// mu serializes writers in this process.
	mu sync.Mutex
}

// Open returns a store over dir, creating it if needed. Partial files left by an interrupted
// save are removed.
func Open(dir string, logger logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating region store %s", dir)
	}
	s := &Store{dir: dir, logger: logger}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading region store %s", dir)
	}
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), partSuffix) {
			continue
		}
		s.logger.Infow("removing interrupted save", "file", de.Name())
		if err := os.Remove(filepath.Join(dir, de.Name())); err != nil {
			s.logger.Warnw("failed to remove interrupted save", "file", de.Name(), "error", err)
		}
	}
	return s, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// List returns every tree file in the store, sorted by name, then oldest first, then by file
// name. Files whose names do not parse are skipped.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading region store %s", s.dir)
	}
	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasSuffix(de.Name(), partSuffix) {
			continue
		}
		e, err := ParseFileName(de.Name())
		if err != nil {
			s.logger.Debugw("skipping file", "file", de.Name(), "reason", err)
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed since ReadDir.
			continue
		}
		e.Path = filepath.Join(s.dir, de.Name())
		e.Size = info.Size()
		e.ModTime = info.ModTime()
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		if c := a.ModTime.Compare(b.ModTime); c != 0 {
			return c
		}
		return strings.Compare(filepath.Base(a.Path), filepath.Base(b.Path))
	})
	return entries, nil
}

func (s *Store) entriesFor(name string) ([]Entry, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	var matched []Entry
	for _, e := range entries {
		if e.Name == name {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// Save writes tree under name. The encoding is written to a partial file, synced and renamed into
// place, so a failed save never leaves a file that reads as the tree. Older files of the same
// tree are removed afterwards.
func (s *Store) Save(ctx context.Context, name string, tree *regiontree.Tree) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := tree.MarshalBinary()
	if err != nil {
		return errors.Wrapf(err, "encoding %s", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	final, err := utils.SafeJoinDir(s.dir, FileName(name, tree.Kind(), tree.Origin(), tree.Side()))
	if err != nil {
		return err
	}
	if err := writeFileSynced(final+partSuffix, data); err != nil {
		return multierr.Combine(
			errors.Wrapf(err, "saving %s", name),
			ignoreNotExist(os.Remove(final+partSuffix)),
		)
	}
	if err := os.Rename(final+partSuffix, final); err != nil {
		return errors.Wrapf(err, "saving %s", name)
	}

	stale, err := s.entriesFor(name)
	if err != nil {
		return err
	}
	var errs error
	for _, e := range stale {
		if e.Path == final {
			continue
		}
		s.logger.Debugw("removing stale tree file", "tree", name, "file", filepath.Base(e.Path))
		errs = multierr.Append(errs, ignoreNotExist(os.Remove(e.Path)))
	}
	s.logger.CDebugw(ctx, "saved tree", "tree", name, "file", filepath.Base(final), "bytes", len(data))
	return errs
}

func writeFileSynced(path string, data []byte) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func ignoreNotExist(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads the named tree. If several files hold it, the newest wins. A truncated file loads
// with its missing part empty.
func (s *Store) Load(ctx context.Context, name string) (*regiontree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.entriesFor(name)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%q in %s", name, s.dir)
	}
	return s.load(entries[len(entries)-1])
}

func (s *Store) load(e Entry) (tree *regiontree.Tree, err error) {
	//nolint:gosec
	f, err := os.Open(e.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", e.Name)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	tree, err = regiontree.Read(e.Kind, e.Origin, e.Side, f, s.logger.Sublogger(e.Name))
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", e.Path)
	}
	return tree, nil
}

// LoadAll reads every tree in the store concurrently, keyed by name.
func (s *Store) LoadAll(ctx context.Context) (map[string]*regiontree.Tree, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	newest := make(map[string]Entry, len(entries))
	for _, e := range entries {
		// Sorted oldest first, so later entries replace earlier ones.
		newest[e.Name] = e
	}

	var mu sync.Mutex
	trees := make(map[string]*regiontree.Tree, len(newest))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for name, e := range newest {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tree, err := s.load(e)
			if err != nil {
				return err
			}
			mu.Lock()
			trees[name] = tree
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}

// Delete removes every file of the named tree.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.entriesFor(name)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.Wrapf(ErrNotFound, "%q in %s", name, s.dir)
	}
	var errs error
	for _, e := range entries {
		errs = multierr.Append(errs, ignoreNotExist(os.Remove(e.Path)))
	}
	return errs
}
