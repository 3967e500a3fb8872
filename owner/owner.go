// Package owner models the hierarchy that owns regions: each owner holds named regions and child
// owners, and a point is governed by the deepest owner with a region containing it.
package owner

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/regions/regiontree"
)

// Owner is a node of the ownership hierarchy.
type Owner struct {
	ID   uuid.UUID
	Name string

	mu       sync.RWMutex
	parent   *Owner
	children []*Owner
	regions  map[string]regiontree.Region
}

// New returns a root owner.
func New(name string) *Owner {
	return &Owner{
		ID:      uuid.New(),
		Name:    name,
		regions: map[string]regiontree.Region{},
	}
}

// NewChild creates an owner under o.
func (o *Owner) NewChild(name string) *Owner {
	child := New(name)
	child.parent = o

	o.mu.Lock()
	o.children = append(o.children, child)
	o.mu.Unlock()
	return child
}

// Parent returns o's parent, or nil for a root.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// Children returns o's children in creation order.
func (o *Owner) Children() []*Owner {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.children)
}

// Attach adds a named region to o.
func (o *Owner) Attach(name string, region regiontree.Region) error {
	if name == "" {
		return errors.New("region name is required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.regions[name]; ok {
		return errors.Errorf("%s already has a region named %q", o.Path(), name)
	}
	o.regions[name] = region
	return nil
}

// Detach removes and returns the named region.
func (o *Owner) Detach(name string) (regiontree.Region, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	region, ok := o.regions[name]
	if ok {
		delete(o.regions, name)
	}
	return region, ok
}

// Region returns the named region.
func (o *Owner) Region(name string) (regiontree.Region, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	region, ok := o.regions[name]
	return region, ok
}

// Regions returns the names of o's regions, sorted.
func (o *Owner) Regions() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := lo.Keys(o.regions)
	slices.Sort(names)
	return names
}

// Path returns the dot-joined names from the root to o.
func (o *Owner) Path() string {
	var names []string
	for cur := o; cur != nil; cur = cur.parent {
		names = append(names, cur.Name)
	}
	slices.Reverse(names)
	return strings.Join(names, ".")
}

// Find returns the owner with the given ID in o's subtree.
func (o *Owner) Find(id uuid.UUID) (*Owner, bool) {
	if o.ID == id {
		return o, true
	}
	for _, child := range o.Children() {
		if found, ok := child.Find(id); ok {
			return found, true
		}
	}
	return nil, false
}

// Locate returns the deepest owner in o's subtree with a region containing p, along with that
// region's name. Among owners at the same depth the earlier child wins; within an owner regions
// are tried in name order.
func (o *Owner) Locate(p regiontree.Point) (*Owner, string, bool) {
	found, name, depth := o.locate(p, 0)
	return found, name, depth >= 0
}

func (o *Owner) locate(p regiontree.Point, depth int) (*Owner, string, int) {
	var (
		best      *Owner
		bestName  string
		bestDepth = -1
	)
	for _, child := range o.Children() {
		if found, name, d := child.locate(p, depth+1); d > bestDepth {
			best, bestName, bestDepth = found, name, d
		}
	}
	if best != nil {
		return best, bestName, bestDepth
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	names := lo.Keys(o.regions)
	slices.Sort(names)
	name, ok := lo.Find(names, func(name string) bool {
		return o.regions[name].Contains(p)
	})
	if !ok {
		return nil, "", -1
	}
	return o, name, depth
}
