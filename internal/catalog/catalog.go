// Package catalog is the persistent store of asset records and their
// compilation history. All reads and writes go through an in-memory table;
// a background flusher writes the table to disk whenever it has changed.
package catalog

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
)

// defaultETA is assumed for assets that have never compiled.
const defaultETA = 5 * time.Second

// Catalog maps identifiers to asset records and to their compilation
// history. Each table has its own read-preferring lock; the dirty flag marks
// divergence between memory and disk.
type Catalog struct {
	path     string
	sidePath string

	mu     sync.RWMutex
	assets map[uuid.UUID]asset.Asset

	cmu          sync.RWMutex
	compilations map[uuid.UUID][]asset.Compilation

	dirty atomic.Bool
}

// Open loads the catalog file at path, or starts empty when the file does
// not exist. An unreadable or malformed file is an error: the operator must
// correct or delete it.
func Open(path, sidePath string) (*Catalog, error) {
	c := &Catalog{
		path:         path,
		sidePath:     sidePath,
		assets:       make(map[uuid.UUID]asset.Asset),
		compilations: make(map[uuid.UUID][]asset.Compilation),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}
	return c, nil
}

// Has reports whether an asset with the identifier is tracked.
func (c *Catalog) Has(id uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.assets[id]
	return ok
}

// Get returns the asset for the identifier.
func (c *Catalog) Get(id uuid.UUID) (asset.Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.assets[id]
	return a, ok
}

// All returns every tracked asset, ordered by display name for stable
// listings.
func (c *Catalog) All() []asset.Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]asset.Asset, 0, len(c.assets))
	for _, a := range c.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Common().Name < out[j].Common().Name
	})
	return out
}

// FindByInputPath scans for the asset whose input path equals the
// library-relative path.
func (c *Catalog) FindByInputPath(rel string) (asset.Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.assets {
		if p, ok := a.SourcePath(); ok && p == rel {
			return a, true
		}
	}
	return nil, false
}

// Insert adds a new asset record.
func (c *Catalog) Insert(a asset.Asset) {
	c.mu.Lock()
	c.assets[a.Common().ID] = a
	c.mu.Unlock()
	c.dirty.Store(true)
}

// Update replaces the record stored under id.
func (c *Catalog) Update(id uuid.UUID, a asset.Asset) {
	c.mu.Lock()
	c.assets[id] = a
	c.mu.Unlock()
	c.dirty.Store(true)
}

// Delete removes the record stored under id, reporting whether it existed.
// Compilation history is retained; orphaned records are tolerated.
func (c *Catalog) Delete(id uuid.UUID) bool {
	c.mu.Lock()
	_, ok := c.assets[id]
	delete(c.assets, id)
	c.mu.Unlock()
	if ok {
		c.dirty.Store(true)
	}
	return ok
}

// InsertCompilation appends a compilation record to the asset's history.
func (c *Catalog) InsertCompilation(rec asset.Compilation) {
	c.cmu.Lock()
	c.compilations[rec.ID] = append(c.compilations[rec.ID], rec)
	c.cmu.Unlock()
	c.dirty.Store(true)
}

// Compilations returns the asset's compilation history in insertion order.
func (c *Catalog) Compilations(id uuid.UUID) []asset.Compilation {
	c.cmu.RLock()
	defer c.cmu.RUnlock()
	recs := c.compilations[id]
	out := make([]asset.Compilation, len(recs))
	copy(out, recs)
	return out
}

// LastCompilation returns the record with the greatest timestamp.
func (c *Catalog) LastCompilation(id uuid.UUID) (asset.Compilation, bool) {
	c.cmu.RLock()
	defer c.cmu.RUnlock()
	recs := c.compilations[id]
	if len(recs) == 0 {
		return asset.Compilation{}, false
	}
	last := recs[0]
	for _, r := range recs[1:] {
		if r.Timestamp.After(last.Timestamp) {
			last = r
		}
	}
	return last, true
}

// CompilationETA estimates the next compile duration from the most recent
// compilation, falling back to a flat default for never-compiled assets.
func (c *Catalog) CompilationETA(id uuid.UUID) time.Duration {
	if last, ok := c.LastCompilation(id); ok {
		return last.Duration.Duration
	}
	return defaultETA
}

// Dirty reports whether the in-memory state diverges from disk.
func (c *Catalog) Dirty() bool { return c.dirty.Load() }
