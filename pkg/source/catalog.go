package source

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/arbiter/pkg/model"
)

// Loader is implemented by FileSource.
type Loader interface {
	Load(ctx context.Context) (*LoadResult, error)
}

// Catalog is a concurrency-safe set of workflow definitions keyed by id.
// Definitions handed out must be treated as read-only.
type Catalog struct {
	mu        sync.RWMutex
	workflows map[string]*model.WorkflowDefinition
	revision  int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{workflows: make(map[string]*model.WorkflowDefinition)}
}

// Replace swaps in a new set of definitions.
func (c *Catalog) Replace(workflows map[string]*model.WorkflowDefinition) {
	next := make(map[string]*model.WorkflowDefinition, len(workflows))
	for id, def := range workflows {
		next[id] = def
	}

	c.mu.Lock()
	c.workflows = next
	c.revision++
	c.mu.Unlock()
}

// Reload loads from l and replaces the catalog contents. When loading
// fails outright the catalog is left unchanged.
func (c *Catalog) Reload(ctx context.Context, l Loader) (*LoadResult, error) {
	result, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.Replace(result.Workflows)
	return result, nil
}

// Get returns the definition with the given id.
func (c *Catalog) Get(id string) (*model.WorkflowDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.workflows[id]
	return def, ok
}

// List returns all definitions ordered by id.
func (c *Catalog) List() []*model.WorkflowDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*model.WorkflowDefinition, 0, len(c.workflows))
	for _, def := range c.workflows {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.workflows)
}

// Revision increases every time the contents are replaced.
func (c *Catalog) Revision() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}
