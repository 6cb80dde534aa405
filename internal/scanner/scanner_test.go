package scanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/catalog"
	"github.com/bfengine/assetpipe/internal/event"
	"github.com/bfengine/assetpipe/internal/importer"
	"github.com/bfengine/assetpipe/internal/library"
)

type fixture struct {
	lib  library.Library
	cat  *catalog.Catalog
	scan *Scanner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	out := t.TempDir()
	lib := library.New(root, out)
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "assets.db"), "")
	if err != nil {
		t.Fatal(err)
	}
	imp := importer.New(lib, cat)
	scan := New(lib, cat, imp, event.NewBroadcaster())
	return &fixture{lib: lib, cat: cat, scan: scan}
}

func (f *fixture) writeSource(t *testing.T, rel string, mtime time.Time) string {
	t.Helper()
	abs := f.lib.ToAbsolute(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte("src"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(abs, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
	return abs
}

func (f *fixture) writeOutput(t *testing.T, id uuid.UUID, mtime time.Time) {
	t.Helper()
	out := f.lib.OutputPath(id)
	if err := os.WriteFile(out, []byte("bf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(out, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
}

// track inserts a tracked image asset for rel with the given record
// timestamp.
func (f *fixture) track(t *testing.T, rel string, updatedAt time.Time) *asset.Image {
	t.Helper()
	abs := f.lib.ToAbsolute(rel)
	id, err := f.lib.IdentifierOf(abs)
	if err != nil {
		t.Fatal(err)
	}
	a := &asset.Image{
		Meta:      asset.Meta{ID: id, Name: filepath.Base(rel), UpdatedAt: updatedAt},
		InputPath: rel,
		Format:    asset.FormatRgba8,
	}
	f.cat.Insert(a)
	return a
}

func (f *fixture) compiled(id uuid.UUID, ts time.Time, errText string) {
	f.cat.InsertCompilation(asset.Compilation{
		ID:        id,
		Timestamp: ts,
		Duration:  asset.Duration{Duration: time.Second},
		Command:   "img2bf",
		Error:     errText,
	})
}

func TestIsDirty(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	recent := time.Now().Add(-time.Minute)

	t.Run("untracked identifier is an error", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.scan.IsDirty(uuid.New()); err == nil {
			t.Fatal("expected error for untracked identifier")
		}
	})

	t.Run("never compiled", func(t *testing.T) {
		f := newFixture(t)
		f.writeSource(t, "a.png", past)
		a := f.track(t, "a.png", past)
		dirty, err := f.scan.IsDirty(a.ID)
		if err != nil || !dirty {
			t.Fatalf("dirty = %v, err = %v; want true", dirty, err)
		}
	})

	t.Run("output missing", func(t *testing.T) {
		f := newFixture(t)
		f.writeSource(t, "a.png", past)
		a := f.track(t, "a.png", past)
		f.compiled(a.ID, past, "")
		dirty, err := f.scan.IsDirty(a.ID)
		if err != nil || !dirty {
			t.Fatalf("dirty = %v, err = %v; want true", dirty, err)
		}
	})

	t.Run("source newer than output", func(t *testing.T) {
		f := newFixture(t)
		a := f.track(t, "a.png", past)
		f.writeOutput(t, a.ID, past)
		f.writeSource(t, "a.png", recent)
		f.compiled(a.ID, past, "")
		dirty, err := f.scan.IsDirty(a.ID)
		if err != nil || !dirty {
			t.Fatalf("dirty = %v, err = %v; want true", dirty, err)
		}
	})

	t.Run("last compilation failed", func(t *testing.T) {
		f := newFixture(t)
		f.writeSource(t, "a.png", past)
		a := f.track(t, "a.png", past)
		f.writeOutput(t, a.ID, recent)
		f.compiled(a.ID, past, "Process execution failed with code 1")
		dirty, err := f.scan.IsDirty(a.ID)
		if err != nil || !dirty {
			t.Fatalf("dirty = %v, err = %v; want true", dirty, err)
		}
	})

	t.Run("record edited after last compile", func(t *testing.T) {
		f := newFixture(t)
		f.writeSource(t, "a.png", past)
		a := f.track(t, "a.png", time.Now())
		f.writeOutput(t, a.ID, recent)
		f.compiled(a.ID, past, "")
		dirty, err := f.scan.IsDirty(a.ID)
		if err != nil || !dirty {
			t.Fatalf("dirty = %v, err = %v; want true", dirty, err)
		}
	})

	t.Run("unreadable source counts as dirty", func(t *testing.T) {
		f := newFixture(t)
		a := f.track(t, "gone.png", past)
		f.writeOutput(t, a.ID, recent)
		f.compiled(a.ID, past, "")
		dirty, err := f.scan.IsDirty(a.ID)
		if err != nil || !dirty {
			t.Fatalf("dirty = %v, err = %v; want true", dirty, err)
		}
	})

	t.Run("clean when output is current", func(t *testing.T) {
		f := newFixture(t)
		f.writeSource(t, "a.png", past)
		a := f.track(t, "a.png", past)
		f.writeOutput(t, a.ID, recent)
		f.compiled(a.ID, recent, "")
		dirty, err := f.scan.IsDirty(a.ID)
		if err != nil || dirty {
			t.Fatalf("dirty = %v, err = %v; want false", dirty, err)
		}
	})
}

func TestDirtySet(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)
	f.writeSource(t, "a.png", past)
	a := f.track(t, "a.png", past)

	f.scan.MarkDirty(a.ID)
	if ids := f.scan.DirtyIDs(); len(ids) != 1 || ids[0] != a.ID {
		t.Fatalf("dirty set = %v", ids)
	}

	f.scan.Forget(a.ID)
	if ids := f.scan.DirtyIDs(); len(ids) != 0 {
		t.Fatalf("dirty set after forget = %v", ids)
	}

	// Recompute puts it back: never compiled means dirty.
	if !f.scan.Recompute(a.ID) {
		t.Fatal("recompute reported clean for never-compiled asset")
	}
	if ids := f.scan.DirtyIDs(); len(ids) != 1 {
		t.Fatalf("dirty set after recompute = %v", ids)
	}
}

func TestRescan(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)
	f.writeSource(t, "textures/brick.png", past)
	f.writeSource(t, "meshes/rock.obj", past)
	f.writeSource(t, "notes.txt", past)

	res, err := f.scan.Rescan()
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 {
		t.Fatalf("imported = %d, want 2", res.Imported)
	}
	if len(res.Dirty) != 2 {
		t.Fatalf("dirty = %v, want 2 entries", res.Dirty)
	}
	if len(f.cat.All()) != 2 {
		t.Fatalf("catalog has %d assets, want 2", len(f.cat.All()))
	}

	t.Run("second rescan imports nothing new", func(t *testing.T) {
		res, err := f.scan.Rescan()
		if err != nil {
			t.Fatal(err)
		}
		if res.Imported != 0 {
			t.Fatalf("imported = %d, want 0", res.Imported)
		}
	})

	t.Run("vanished source is untracked", func(t *testing.T) {
		if err := os.Remove(f.lib.ToAbsolute("textures/brick.png")); err != nil {
			t.Fatal(err)
		}
		res, err := f.scan.Rescan()
		if err != nil {
			t.Fatal(err)
		}
		if res.Removed != 1 {
			t.Fatalf("removed = %d, want 1", res.Removed)
		}
		if len(f.cat.All()) != 1 {
			t.Fatalf("catalog has %d assets, want 1", len(f.cat.All()))
		}
	})

	t.Run("materials survive rescans", func(t *testing.T) {
		m := &asset.Material{Meta: asset.Meta{ID: uuid.New(), Name: "wall", UpdatedAt: past}}
		f.cat.Insert(m)
		res, err := f.scan.Rescan()
		if err != nil {
			t.Fatal(err)
		}
		if res.Removed != 0 {
			t.Fatalf("removed = %d, want 0", res.Removed)
		}
		if !f.cat.Has(m.ID) {
			t.Fatal("material was untracked by rescan")
		}
	})
}

func TestResolveTrackedMaterialFolder(t *testing.T) {
	f := newFixture(t)

	// A material whose conceptual input is <dir>/.mat resolves from the
	// directory path.
	dir := f.lib.ToAbsolute("materials/wall")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	id, err := f.lib.IdentifierOf(filepath.Join(dir, ".mat"))
	if err != nil {
		t.Fatal(err)
	}
	f.cat.Insert(&asset.Material{Meta: asset.Meta{ID: id, Name: "wall", UpdatedAt: time.Now()}})

	a, ok := f.scan.resolveTracked(dir)
	if !ok {
		t.Fatal("material folder did not resolve")
	}
	if a.Common().ID != id {
		t.Fatalf("resolved %s, want %s", a.Common().ID, id)
	}
}

func TestRefreshPath(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)

	t.Run("imports untracked files", func(t *testing.T) {
		abs := f.writeSource(t, "new.png", past)
		id, dirty := f.scan.RefreshPath(abs)
		want, _ := f.lib.IdentifierOf(abs)
		if id != want || !dirty {
			t.Fatalf("RefreshPath = %s, %v; want %s, true", id, dirty, want)
		}
		if !f.cat.Has(id) {
			t.Fatal("refresh did not import the file")
		}
		if ids := f.scan.DirtyIDs(); len(ids) != 1 {
			t.Fatalf("dirty set = %v", ids)
		}
	})

	t.Run("untracks deleted files", func(t *testing.T) {
		abs := f.lib.ToAbsolute("new.png")
		id, _ := f.lib.IdentifierOf(abs)
		if err := os.Remove(abs); err != nil {
			t.Fatal(err)
		}
		got, dirty := f.scan.RefreshPath(abs)
		if got != uuid.Nil || dirty {
			t.Fatalf("RefreshPath = %s, %v; want Nil, false", got, dirty)
		}
		if f.cat.Has(id) {
			t.Fatal("refresh kept a vanished file tracked")
		}
	})
}
