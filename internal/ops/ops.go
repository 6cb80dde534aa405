// Package ops composes catalog, scanner and scheduler into the operation
// surface shared by the HTTP layer and the filesystem watcher.
package ops

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/catalog"
	"github.com/bfengine/assetpipe/internal/compiler"
	"github.com/bfengine/assetpipe/internal/event"
	"github.com/bfengine/assetpipe/internal/importer"
	"github.com/bfengine/assetpipe/internal/library"
	"github.com/bfengine/assetpipe/internal/scanner"
)

// Ops is the façade over the coordination layer. All methods are safe for
// concurrent use.
type Ops struct {
	Lib       library.Library
	Catalog   *catalog.Catalog
	Importer  *importer.Importer
	Scanner   *scanner.Scanner
	Scheduler *compiler.Scheduler
	Events    *event.Broadcaster

	// AutoCompile submits assets as soon as they are found dirty.
	AutoCompile bool
}

// Asset returns one asset record.
func (o *Ops) Asset(id uuid.UUID) (asset.Asset, bool) { return o.Catalog.Get(id) }

// Assets returns every tracked asset.
func (o *Ops) Assets() []asset.Asset { return o.Catalog.All() }

// Compilations returns the asset's compile history.
func (o *Ops) Compilations(id uuid.UUID) []asset.Compilation {
	return o.Catalog.Compilations(id)
}

// DirtyIDs returns the current dirty set.
func (o *Ops) DirtyIDs() []uuid.UUID { return o.Scanner.DirtyIDs() }

// UpdateAsset replaces a tracked asset record, bumps its timestamp, and
// recomputes dirtiness.
func (o *Ops) UpdateAsset(a asset.Asset) error {
	id := a.Common().ID
	if !o.Catalog.Has(id) {
		return fmt.Errorf("asset %s is not tracked", id)
	}
	a.Common().Touch()
	o.Catalog.Update(id, a)
	o.Events.Publish(event.NewAssetUpdate(a))
	o.Scanner.Recompute(id)
	return nil
}

// CompileOne submits a single identifier.
func (o *Ops) CompileOne(id uuid.UUID) { o.Scheduler.Enqueue(id) }

// CompileAll submits every identifier. Per-asset failures surface as
// compilation records and events; they do not affect sibling submissions.
func (o *Ops) CompileAll(ids []uuid.UUID) {
	for _, id := range ids {
		o.Scheduler.Enqueue(id)
	}
}

// TrackFile imports a new source file. Returns the identifier and true when
// the file is tracked afterwards (newly imported or already present).
func (o *Ops) TrackFile(abs string) (uuid.UUID, bool) {
	a, err := o.Importer.Import(abs)
	if err != nil {
		var tracked *importer.AlreadyTrackedError
		if errors.As(err, &tracked) {
			return tracked.ID, true
		}
		slog.Debug("Track skipped", "path", abs, "err", err)
		return uuid.Nil, false
	}
	o.Catalog.Insert(a)
	id := a.Common().ID
	o.Events.Publish(event.NewAssetUpdate(a))
	o.Scanner.MarkDirty(id)
	slog.Info("Tracking new asset", "path", abs, "id", id)
	if o.AutoCompile {
		o.Scheduler.Enqueue(id)
	}
	return id, true
}

// CancelTracking removes an asset from the catalog.
func (o *Ops) CancelTracking(id uuid.UUID) {
	if o.Catalog.Delete(id) {
		o.Scanner.Forget(id)
		o.Events.Publish(event.NewAssetRemoved(id))
		slog.Info("Stopped tracking asset", "id", id)
	}
}

// RefreshFile re-evaluates one disk path, submitting it when it turns out
// dirty and auto-compile is on.
func (o *Ops) RefreshFile(abs string) {
	id, dirty := o.Scanner.RefreshPath(abs)
	if o.AutoCompile && dirty && id != uuid.Nil {
		o.Scheduler.Enqueue(id)
	}
}

// RelocateAsset rewrites the input path of a tracked asset after a rename.
// The identifier deliberately keeps its original value: identity follows the
// import-time path, not the current one.
func (o *Ops) RelocateAsset(id uuid.UUID, newAbs string) error {
	a, ok := o.Catalog.Get(id)
	if !ok {
		return fmt.Errorf("asset %s is not tracked", id)
	}
	rel, err := o.Lib.ToRelative(newAbs)
	if err != nil {
		return fmt.Errorf("relocating %s: %w", id, err)
	}
	// The stored record is read concurrently by the HTTP layer, the
	// flusher, and compile tasks: rewrite a clone and store that back.
	cp := a.Clone()
	switch v := cp.(type) {
	case *asset.Image:
		v.InputPath = rel
	case *asset.Mesh:
		v.InputPath = rel
	default:
		return fmt.Errorf("asset %s has no input path", id)
	}
	cp.Common().Touch()
	o.Catalog.Update(id, cp)
	o.Events.Publish(event.NewAssetUpdate(cp))
	o.Scanner.Recompute(id)
	return nil
}

// Refresh performs a full rescan, publishes the results, and, when
// auto-compile is on, submits every dirty identifier.
func (o *Ops) Refresh() (scanner.Result, error) {
	res, err := o.Scanner.Rescan()
	if err != nil {
		return res, err
	}
	o.Events.Publish(event.NewScanResults(res.Scanned, res.Imported, res.Removed, res.Dirty))
	if o.AutoCompile {
		o.CompileAll(res.Dirty)
	}
	return res, nil
}
