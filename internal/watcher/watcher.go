// Package watcher translates OS filesystem notifications on the library
// tree into Ops calls. Events are coalesced per path before dispatch, so a
// burst of writes from an editor save produces a single refresh.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/ops"
)

// defaultDebounce is the per-path coalescing window.
const defaultDebounce = time.Second

// pending is one path's accumulated, not-yet-dispatched event mask.
type pending struct {
	timer *time.Timer
	op    fsnotify.Op
}

// Watcher owns the fsnotify instance and the debounce state. Run drives
// everything from a single goroutine; only the timers escape it, and they
// hand their work straight back through a channel.
type Watcher struct {
	ops      *ops.Ops
	debounce time.Duration
}

// New returns a watcher dispatching to o.
func New(o *ops.Ops) *Watcher {
	return &Watcher{ops: o, debounce: defaultDebounce}
}

// SetDebounce overrides the coalescing window. Tests use short windows.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Run watches the library root until ctx is done. New subdirectories are
// added to the watch as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := addRecursive(fw, w.ops.Lib.Root); err != nil {
		return fmt.Errorf("watching library tree: %w", err)
	}
	slog.Info("Watching library for changes", "root", w.ops.Lib.Root)

	// Debounced paths flow back into the loop through flushCh so that all
	// pending-map access stays on this goroutine.
	flushCh := make(chan string, 16)
	pendings := make(map[string]*pending)

	// A Rename for a tracked file is held here briefly: if a Create shows
	// up within the window it is the same file at a new path.
	var renamed struct {
		path string
		at   time.Time
	}

	for {
		select {
		case <-ctx.Done():
			for _, p := range pendings {
				p.timer.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			path := filepath.Clean(ev.Name)
			p, exists := pendings[path]
			if !exists {
				p = &pending{}
				p.timer = time.AfterFunc(w.debounce, func() {
					// The callback runs on its own goroutine, so a
					// blocking send delays the flush under a burst
					// instead of losing it.
					select {
					case flushCh <- path:
					case <-ctx.Done():
					}
				})
				pendings[path] = p
			} else {
				p.timer.Reset(w.debounce)
			}
			p.op |= ev.Op

		case path := <-flushCh:
			p, ok := pendings[path]
			if !ok {
				continue
			}
			delete(pendings, path)
			w.dispatch(fw, path, p.op, &renamed)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "err", err)
		}
	}
}

// dispatch handles one coalesced event mask for a path.
func (w *Watcher) dispatch(fw *fsnotify.Watcher, path string, op fsnotify.Op, renamed *struct {
	path string
	at   time.Time
}) {
	info, statErr := os.Stat(path)
	gone := os.IsNotExist(statErr)

	switch {
	case op&(fsnotify.Remove|fsnotify.Rename) != 0 && gone:
		// The path disappeared. A Rename may be the first half of a move;
		// remember it so the matching Create can relocate the asset.
		if op&fsnotify.Rename != 0 {
			renamed.path = path
			renamed.at = time.Now()
		}
		if id, err := w.ops.Lib.IdentifierOf(path); err == nil && w.ops.Catalog.Has(id) {
			if op&fsnotify.Rename != 0 {
				// Give the Create half a window before untracking. If the
				// rename was paired, the record's input path moved on and
				// still exists; only a genuinely gone source is untracked.
				w.untrackLater(id)
			} else {
				w.ops.CancelTracking(id)
			}
		}

	case op&fsnotify.Create != 0 && !gone:
		if info.IsDir() {
			if err := addRecursive(fw, path); err != nil {
				slog.Warn("Cannot watch new directory", "path", path, "err", err)
			}
			return
		}
		// Pair with a recent rename: same file, new path.
		if renamed.path != "" && time.Since(renamed.at) <= 2*w.debounce {
			if id, err := w.ops.Lib.IdentifierOf(renamed.path); err == nil && w.ops.Catalog.Has(id) {
				renamed.path = ""
				if err := w.ops.RelocateAsset(id, path); err != nil {
					slog.Warn("Rename relocation failed", "id", id, "path", path, "err", err)
				}
				return
			}
		}
		// RefreshFile imports untracked files and recomputes tracked ones,
		// submitting at most once when auto-compile is on.
		w.ops.RefreshFile(path)

	case op&fsnotify.Write != 0 && !gone:
		if id, err := w.ops.Lib.IdentifierOf(path); err == nil && w.ops.Catalog.Has(id) {
			w.ops.RefreshFile(path)
		}
	}
}

// untrackLater cancels tracking after the rename-pairing window, unless the
// asset's source path resolved to an existing file in the meantime.
func (w *Watcher) untrackLater(id uuid.UUID) {
	time.AfterFunc(2*w.debounce, func() {
		a, ok := w.ops.Catalog.Get(id)
		if !ok {
			return
		}
		rel, hasInput := a.SourcePath()
		if !hasInput {
			return
		}
		if _, err := os.Stat(w.ops.Lib.ToAbsolute(rel)); os.IsNotExist(err) {
			w.ops.CancelTracking(id)
		}
	})
}

// addRecursive registers dir and every subdirectory with the watcher.
func addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Skipping unwatchable entry", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			slog.Warn("Cannot watch directory", "path", path, "err", err)
		}
		return nil
	})
}
