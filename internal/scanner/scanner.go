// Package scanner walks the library, imports new source files, and tracks
// which assets have stale compiled output.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/catalog"
	"github.com/bfengine/assetpipe/internal/event"
	"github.com/bfengine/assetpipe/internal/importer"
	"github.com/bfengine/assetpipe/internal/library"
)

// materialMarker is the synthetic file name that lets a material share an
// identifier with its folder: a directory path resolves to the asset whose
// conceptual input is <dir>/.mat.
const materialMarker = ".mat"

// Result summarizes one full rescan.
type Result struct {
	Scanned  int         `json:"scanned"`
	Imported int         `json:"imported"`
	Removed  int         `json:"removed"`
	Dirty    []uuid.UUID `json:"dirty"`
}

// Scanner maintains the dirty set and performs library walks.
type Scanner struct {
	lib    library.Library
	cat    *catalog.Catalog
	imp    *importer.Importer
	events *event.Broadcaster

	mu    sync.Mutex
	dirty map[uuid.UUID]struct{}
}

// New returns a scanner with an empty dirty set.
func New(lib library.Library, cat *catalog.Catalog, imp *importer.Importer, events *event.Broadcaster) *Scanner {
	return &Scanner{
		lib:    lib,
		cat:    cat,
		imp:    imp,
		events: events,
		dirty:  make(map[uuid.UUID]struct{}),
	}
}

// IsDirty computes whether the asset's compiled output is missing or stale.
// It does not touch the dirty set; use Recompute for that. Calling it for an
// untracked identifier is a caller error.
func (s *Scanner) IsDirty(id uuid.UUID) (bool, error) {
	a, ok := s.cat.Get(id)
	if !ok {
		return false, fmt.Errorf("asset %s is not tracked", id)
	}

	last, compiled := s.cat.LastCompilation(id)
	if !compiled {
		return true, nil
	}

	out := s.lib.OutputPath(id)
	outInfo, err := os.Stat(out)
	if err != nil {
		// Missing output, or output we cannot stat: either way it needs
		// a compile.
		if !os.IsNotExist(err) {
			slog.Warn("Cannot stat compiled output, treating as dirty", "path", out, "err", err)
		}
		return true, nil
	}

	if rel, hasInput := a.SourcePath(); hasInput {
		inInfo, err := os.Stat(s.lib.ToAbsolute(rel))
		if err != nil {
			slog.Warn("Cannot stat source file, treating as dirty", "path", rel, "err", err)
			return true, nil
		}
		if inInfo.ModTime().After(outInfo.ModTime()) {
			return true, nil
		}
	}

	if last.Failed() {
		return true, nil
	}

	if a.Common().UpdatedAt.After(outInfo.ModTime()) {
		return true, nil
	}

	return false, nil
}

// Recompute refreshes the dirty set entry for id and publishes the result.
func (s *Scanner) Recompute(id uuid.UUID) bool {
	dirty, err := s.IsDirty(id)
	if err != nil {
		slog.Warn("Dirtiness recompute for untracked asset", "id", id, "err", err)
		return false
	}
	s.setDirty(id, dirty)
	s.events.Publish(event.NewAssetDirtyStatus(id, dirty))
	return dirty
}

func (s *Scanner) setDirty(id uuid.UUID, dirty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dirty {
		s.dirty[id] = struct{}{}
	} else {
		delete(s.dirty, id)
	}
}

// MarkDirty force-flags an identifier, used right after import.
func (s *Scanner) MarkDirty(id uuid.UUID) {
	s.setDirty(id, true)
	s.events.Publish(event.NewAssetDirtyStatus(id, true))
}

// Forget drops an identifier from the dirty set.
func (s *Scanner) Forget(id uuid.UUID) {
	s.setDirty(id, false)
}

// DirtyIDs returns the dirty set in stable order.
func (s *Scanner) DirtyIDs() []uuid.UUID {
	s.mu.Lock()
	out := make([]uuid.UUID, 0, len(s.dirty))
	for id := range s.dirty {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// resolveTracked maps a disk path to the asset it belongs to. Directories
// additionally resolve through the material marker, so a material shares an
// identifier with its folder.
func (s *Scanner) resolveTracked(abs string) (asset.Asset, bool) {
	if id, err := s.lib.IdentifierOf(abs); err == nil {
		if a, ok := s.cat.Get(id); ok {
			return a, true
		}
	}
	if id, err := s.lib.IdentifierOf(filepath.Join(abs, materialMarker)); err == nil {
		if a, ok := s.cat.Get(id); ok {
			return a, true
		}
	}
	return nil, false
}

// Rescan clears the dirty set, walks the whole library, imports new files,
// recomputes dirtiness for tracked ones, and untracks assets whose source
// file disappeared.
func (s *Scanner) Rescan() (Result, error) {
	s.mu.Lock()
	s.dirty = make(map[uuid.UUID]struct{})
	s.mu.Unlock()

	var res Result
	err := filepath.WalkDir(s.lib.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Skipping unreadable entry during rescan", "path", path, "err", err)
			return nil
		}
		if path == s.lib.Root {
			return nil
		}
		if a, ok := s.resolveTracked(path); ok {
			res.Scanned++
			s.Recompute(a.Common().ID)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		res.Scanned++
		if _, ok := s.importPath(path); ok {
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walking %s: %w", s.lib.Root, err)
	}

	// Untrack assets whose source file no longer exists. Materials have no
	// source file and are never removed here.
	for _, a := range s.cat.All() {
		rel, hasInput := a.SourcePath()
		if !hasInput {
			continue
		}
		if _, err := os.Stat(s.lib.ToAbsolute(rel)); os.IsNotExist(err) {
			id := a.Common().ID
			s.cat.Delete(id)
			s.Forget(id)
			s.events.Publish(event.NewAssetRemoved(id))
			res.Removed++
		}
	}

	res.Dirty = s.DirtyIDs()
	return res, nil
}

// RefreshPath re-evaluates a single disk path: untracks it when the file is
// gone, recomputes dirtiness when tracked, imports it otherwise. Returns the
// affected identifier and its dirtiness, or uuid.Nil when the path resolved
// to nothing.
func (s *Scanner) RefreshPath(abs string) (uuid.UUID, bool) {
	if a, ok := s.resolveTracked(abs); ok {
		id := a.Common().ID
		rel, hasInput := a.SourcePath()
		if hasInput {
			if _, err := os.Stat(s.lib.ToAbsolute(rel)); os.IsNotExist(err) {
				s.cat.Delete(id)
				s.Forget(id)
				s.events.Publish(event.NewAssetRemoved(id))
				return uuid.Nil, false
			}
		}
		return id, s.Recompute(id)
	}
	return s.importPath(abs)
}

// importPath runs the importer for a path and inserts the result. Import
// failures are expected for unsupported files and only logged.
func (s *Scanner) importPath(abs string) (uuid.UUID, bool) {
	a, err := s.imp.Import(abs)
	if err != nil {
		var tracked *importer.AlreadyTrackedError
		if errors.As(err, &tracked) {
			slog.Debug("Import skipped, already tracked", "path", abs, "id", tracked.ID)
		} else {
			slog.Debug("Import skipped", "path", abs, "err", err)
		}
		return uuid.Nil, false
	}
	s.cat.Insert(a)
	s.events.Publish(event.NewAssetUpdate(a))
	s.MarkDirty(a.Common().ID)
	slog.Info("Imported asset", "path", abs, "id", a.Common().ID)
	return a.Common().ID, true
}
