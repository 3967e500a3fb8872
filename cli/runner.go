package cli

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"math/bits"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/regions/bitregion"
	"go.viam.com/regions/config"
	"go.viam.com/regions/logging"
	"go.viam.com/regions/regionedit"
	"go.viam.com/regions/regionstore"
	"go.viam.com/regions/regiontree"
)

// maxImportCells bounds the bitmap built for one import batch. Sparser batches are added point
// by point.
const maxImportCells = 1 << 24

type runner struct {
	out    io.Writer
	errOut io.Writer

	logger   logging.Logger
	logFile  *logging.FileAppender
	store    *regionstore.Store
	kind     regiontree.Kind
	interval time.Duration
}

func (r *runner) before(c *cli.Context) error {
	r.logger = logging.NewBlankLogger("regions")
	r.logger.AddAppender(logging.NewWriterAppender(r.errOut))
	r.logger.SetLevel(config.DefaultLogLevel)
	logging.ReplaceGlobal(r.logger)
	r.kind = config.DefaultKind
	r.interval = config.DefaultFlushInterval

	var cfg *config.Config
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(c.Context, path, r.logger); err != nil {
			return err
		}
		r.logger.SetLevel(cfg.Level())
		if cfg.LogFile != "" {
			r.logFile = logging.NewFileAppender(cfg.LogFile)
			r.logger.AddAppender(r.logFile)
		}
		r.kind = cfg.Kind()
		r.interval = cfg.Interval()
	}
	if c.Bool(flagDebug) {
		r.logger.SetLevel(logging.DEBUG)
	}

	dir := c.String(flagDir)
	if dir == "" && cfg != nil {
		dir = cfg.StoreDir
	}
	if dir == "" {
		return errors.Errorf("no store directory; pass --%s or a config with store_dir", flagDir)
	}
	store, err := regionstore.Open(dir, r.logger.Sublogger("store"))
	if err != nil {
		return err
	}
	r.store = store

	if cfg != nil {
		return r.createConfiguredTrees(c, cfg)
	}
	return nil
}

// createConfiguredTrees saves an empty tree for every configured tree missing from the store.
func (r *runner) createConfiguredTrees(c *cli.Context, cfg *config.Config) error {
	entries, err := r.store.List()
	if err != nil {
		return err
	}
	existing := lo.SliceToMap(entries, func(e regionstore.Entry) (string, struct{}) {
		return e.Name, struct{}{}
	})
	for _, tc := range cfg.Trees {
		if _, ok := existing[tc.Name]; ok {
			continue
		}
		tree, err := tc.NewTree(r.logger.Sublogger(tc.Name))
		if err != nil {
			return err
		}
		if err := r.store.Save(c.Context, tc.Name, tree); err != nil {
			return err
		}
		r.logger.Infow("created configured tree", "tree", tc.Name, "bounds", tc.Bounds().String())
	}
	return nil
}

func (r *runner) after(c *cli.Context) error {
	if r.logger != nil {
		goutils.UncheckedErrorFunc(r.logger.Sync)
	}
	if r.logFile != nil {
		return r.logFile.Close()
	}
	return nil
}

func (r *runner) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func nameArg(c *cli.Context) (string, error) {
	name := c.Args().First()
	if name == "" {
		return "", errors.Errorf("%s needs a tree name", c.Command.Name)
	}
	return name, nil
}

func (r *runner) createAction(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	kind := r.kind
	if s := c.String(flagKind); s != "" {
		if kind, err = regiontree.ParseKind(s); err != nil {
			return err
		}
	}
	minCell, err := parsePoint(c.String(flagMin))
	if err != nil {
		return errors.Wrapf(err, "--%s", flagMin)
	}
	maxCell, err := parsePoint(c.String(flagMax))
	if err != nil {
		return errors.Wrapf(err, "--%s", flagMax)
	}

	if _, err := r.store.Load(c.Context, name); err == nil {
		return errors.Errorf("tree %q already exists", name)
	} else if !errors.Is(err, regionstore.ErrNotFound) {
		return err
	}
	tree, err := regiontree.New(kind, regiontree.NewBox(minCell, maxCell), r.logger.Sublogger(name))
	if err != nil {
		return err
	}
	if err := r.store.Save(c.Context, name, tree); err != nil {
		return err
	}
	bounds, _ := tree.Bounds()
	r.printf("created %s %s covering %v", kind, name, bounds)
	return nil
}

func (r *runner) openEditor(c *cli.Context) (*regionedit.Editor, error) {
	name, err := nameArg(c)
	if err != nil {
		return nil, err
	}
	tree, err := r.store.Load(c.Context, name)
	if err != nil {
		return nil, err
	}
	return regionedit.NewEditor(name, tree, r.store, nil, r.logger.Sublogger(name)), nil
}

func (r *runner) addAction(c *cli.Context) error {
	return r.edit(c, true)
}

func (r *runner) removeAction(c *cli.Context) error {
	return r.edit(c, false)
}

func (r *runner) edit(c *cli.Context, include bool) error {
	points, err := parsePoints(c.StringSlice(flagPoint))
	if err != nil {
		return errors.Wrapf(err, "--%s", flagPoint)
	}
	boxes, err := parseBoxes(c.StringSlice(flagBox))
	if err != nil {
		return errors.Wrapf(err, "--%s", flagBox)
	}
	if len(points)+len(boxes) == 0 {
		return errors.Errorf("%s needs at least one --%s or --%s", c.Command.Name, flagPoint, flagBox)
	}

	editor, err := r.openEditor(c)
	if err != nil {
		return err
	}
	for _, p := range points {
		if include {
			err = editor.AddPoint(p)
		} else {
			err = editor.RemovePoint(p)
		}
		if err != nil {
			return err
		}
	}
	for _, b := range boxes {
		if include {
			err = editor.AddBox(b)
		} else {
			err = editor.RemoveBox(b)
		}
		if err != nil {
			return err
		}
	}
	if err := editor.Close(c.Context); err != nil {
		return err
	}
	r.printf("%s: %d cells", editor.Name(), editor.Snapshot().Volume())
	return nil
}

func (r *runner) importAction(c *cli.Context) (err error) {
	batchSize := c.Int(flagBatch)
	if batchSize <= 0 {
		return errors.Errorf("--%s must be positive", flagBatch)
	}
	editor, err := r.openEditor(c)
	if err != nil {
		return err
	}

	in := c.App.Reader
	if path := c.String(flagFile); path != "-" {
		//nolint:gosec
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "opening positions")
		}
		defer goutils.UncheckedErrorFunc(f.Close)
		in = f
	}

	kind := editor.Snapshot().Kind()
	editor.Start(r.interval)
	defer func() {
		if closeErr := editor.Close(c.Context); err == nil {
			err = closeErr
		}
	}()

	var batch []r3.Vector
	var total int
	scanner := bufio.NewScanner(in)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := parseVector(text)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		batch = append(batch, v)
		if len(batch) == batchSize {
			if err := importBatch(editor, kind, batch); err != nil {
				return err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading positions")
	}
	if len(batch) > 0 {
		if err := importBatch(editor, kind, batch); err != nil {
			return err
		}
		total += len(batch)
	}
	r.logger.Debugw("imported positions", "tree", editor.Name(), "positions", total)
	r.printf("%s: imported %d positions", editor.Name(), total)
	return nil
}

func cellOf(kind regiontree.Kind, v r3.Vector) regiontree.Point {
	p := regiontree.PointFromVector(v)
	if kind == regiontree.Quadtree {
		p.Y = 0
	}
	return p
}

func importBatch(editor *regionedit.Editor, kind regiontree.Kind, vs []r3.Vector) error {
	bounds := lo.Reduce(vs[1:], func(b regiontree.Box, v r3.Vector, _ int) regiontree.Box {
		return b.Union(regiontree.PointBox(cellOf(kind, v)))
	}, regiontree.PointBox(cellOf(kind, vs[0])))
	if bounds.Volume() > maxImportCells {
		for _, v := range vs {
			if err := editor.AddPoint(cellOf(kind, v)); err != nil {
				return err
			}
		}
		return nil
	}
	bm, err := bitregion.FromVectors(kind, vs)
	if err != nil {
		return err
	}
	return editor.AddBitmap(bm)
}

func (r *runner) containsAction(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	if c.Args().Len() != 2 {
		return errors.New("contains needs a tree name and a cell")
	}
	p, err := parsePoint(c.Args().Get(1))
	if err != nil {
		return err
	}
	tree, err := r.store.Load(c.Context, name)
	if err != nil {
		return err
	}
	r.printf("%t", tree.Contains(p))
	return nil
}

func (r *runner) statsAction(c *cli.Context) error {
	entries, err := r.store.List()
	if err != nil {
		return err
	}
	trees, err := r.store.LoadAll(c.Context)
	if err != nil {
		return err
	}
	newest := map[string]regionstore.Entry{}
	for _, e := range entries {
		newest[e.Name] = e
	}
	names := lo.Keys(newest)
	slices.Sort(names)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Name", "Kind", "Bounds", "File size", "Partial", "Full", "Empty", "Depth", "Volume"})
	for _, name := range names {
		tree, ok := trees[name]
		if !ok {
			continue
		}
		stats := tree.Stats()
		bounds := "empty"
		if _, sized := tree.Bounds(); sized {
			bounds = stats.Bounds.String()
		}
		t.AppendRow(table.Row{
			name, stats.Kind, bounds, units.HumanSize(float64(newest[name].Size)),
			stats.Partial, stats.Full, stats.Empty, stats.MaxDepth, stats.Volume,
		})
	}
	r.printf("%s", t.Render())
	return nil
}

func (r *runner) dumpAction(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	tree, err := r.store.Load(c.Context, name)
	if err != nil {
		return err
	}
	data, err := tree.MarshalBinary()
	if err != nil {
		return err
	}
	r.printf("%s %v", name, tree)
	fmt.Fprint(r.out, hex.Dump(data))

	rootLevel := bits.TrailingZeros(uint(tree.Side()))
	tree.Walk(func(n *regiontree.Node, box regiontree.Box) bool {
		depth := rootLevel - bits.TrailingZeros(uint(box.Size(regiontree.AxisX)))
		r.printf("%s%s %v", strings.Repeat("  ", depth), n.Type(), box)
		return true
	})
	return nil
}

func (r *runner) deleteAction(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	if err := r.store.Delete(name); err != nil {
		return err
	}
	r.printf("deleted %s", name)
	return nil
}
