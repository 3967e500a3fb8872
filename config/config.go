// Package config defines the configuration of a region store and the trees it should hold.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/regions/logging"
	"go.viam.com/regions/regiontree"
	"go.viam.com/regions/utils"
)

// Defaults filled in by Validate.
const (
	DefaultKind          = regiontree.Octree
	DefaultFlushInterval = 5 * time.Second
	DefaultLogLevel      = logging.INFO
)

// Config describes a region store.
type Config struct {
	ConfigFilePath string `json:"-"`

	StoreDir      string       `json:"store_dir"`
	DefaultKind   string       `json:"default_kind,omitempty"`
	FlushInterval string       `json:"flush_interval,omitempty"`
	LogLevel      string       `json:"log_level,omitempty"`
	LogFile       string       `json:"log_file,omitempty"`
	Trees         []TreeConfig `json:"trees,omitempty"`

	kind          regiontree.Kind
	flushInterval time.Duration
	logLevel      logging.Level
}

// Coords is a cell coordinate as written in a config.
type Coords struct {
	X int `json:"x"`
	Z int `json:"z"`
	Y int `json:"y"`
}

// Point returns the coordinate as a tree point.
func (c Coords) Point() regiontree.Point {
	return regiontree.Point{X: c.X, Y: c.Y, Z: c.Z}
}

// TreeConfig describes a tree that should exist in the store. A tree missing from the store is
// created empty with this cube.
type TreeConfig struct {
	Name   string `json:"name"`
	Kind   string `json:"kind,omitempty"`
	Origin Coords `json:"origin"`
	Side   int    `json:"side"`

	kind regiontree.Kind
}

// Validate checks the tree config, using defaultKind when no kind is given.
func (tc *TreeConfig) Validate(path string, defaultKind regiontree.Kind) error {
	if tc.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	tc.kind = defaultKind
	if tc.Kind != "" {
		kind, err := regiontree.ParseKind(tc.Kind)
		if err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
		tc.kind = kind
	}
	if tc.Side <= 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("side must be positive, got %d", tc.Side))
	}
	if _, err := tc.NewTree(logging.NewBlankLogger("")); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// NewTree returns an empty tree over the configured cube.
func (tc TreeConfig) NewTree(logger logging.Logger) (*regiontree.Tree, error) {
	return regiontree.Decode(tc.kind, tc.Origin.Point(), tc.Side, nil, logger)
}

// TreeKind returns the validated kind of the tree.
func (tc TreeConfig) TreeKind() regiontree.Kind {
	return tc.kind
}

// Bounds returns the tree's configured cube.
func (tc TreeConfig) Bounds() regiontree.Box {
	return tc.kind.Cube(tc.Origin.Point(), tc.Side)
}

// resolvePath expands ~ and makes a relative path relative to the config file's directory.
func (c *Config) resolvePath(p string) (string, error) {
	p, err := utils.ExpandHomeDir(p)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) && c.ConfigFilePath != "" {
		p = filepath.Join(filepath.Dir(c.ConfigFilePath), p)
	}
	return p, nil
}

// Validate checks the config and fills in defaults. Relative store directories and log files are
// resolved against the directory of the config file.
func (c *Config) Validate(path string) error {
	if c.StoreDir == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "store_dir")
	}
	dir, err := c.resolvePath(c.StoreDir)
	if err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	c.StoreDir = dir
	if c.LogFile != "" {
		if c.LogFile, err = c.resolvePath(c.LogFile); err != nil {
			return goutils.NewConfigValidationError(path, errors.Wrap(err, "log_file"))
		}
	}

	c.kind = DefaultKind
	if c.DefaultKind != "" {
		if c.kind, err = regiontree.ParseKind(c.DefaultKind); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}

	c.flushInterval = DefaultFlushInterval
	if c.FlushInterval != "" {
		if c.flushInterval, err = time.ParseDuration(c.FlushInterval); err != nil {
			return goutils.NewConfigValidationError(path, errors.Wrap(err, "flush_interval"))
		}
		if c.flushInterval <= 0 {
			return goutils.NewConfigValidationError(path, errors.New("flush_interval must be positive"))
		}
	}

	c.logLevel = DefaultLogLevel
	if c.LogLevel != "" {
		if c.logLevel, err = logging.LevelFromString(c.LogLevel); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}

	seen := map[string]struct{}{}
	for idx := range c.Trees {
		treePath := fmt.Sprintf("%s.%d", joinPath(path, "trees"), idx)
		if err := c.Trees[idx].Validate(treePath, c.kind); err != nil {
			return err
		}
		if _, ok := seen[c.Trees[idx].Name]; ok {
			return goutils.NewConfigValidationError(treePath, errors.Errorf("duplicate tree name %q", c.Trees[idx].Name))
		}
		seen[c.Trees[idx].Name] = struct{}{}
	}
	return nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// Kind returns the validated default tree kind.
func (c *Config) Kind() regiontree.Kind {
	return c.kind
}

// Interval returns the validated flush interval.
func (c *Config) Interval() time.Duration {
	return c.flushInterval
}

// Level returns the validated log level.
func (c *Config) Level() logging.Level {
	return c.logLevel
}
