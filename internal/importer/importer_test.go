package importer

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/catalog"
	"github.com/bfengine/assetpipe/internal/library"
)

func newImporter(t *testing.T) (*Importer, library.Library, *catalog.Catalog) {
	t.Helper()
	lib := library.New("/srv/library", "/srv/out")
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "assets.db"), "")
	if err != nil {
		t.Fatal(err)
	}
	return New(lib, cat), lib, cat
}

func TestImportImage(t *testing.T) {
	imp, lib, _ := newImporter(t)

	a, err := imp.Import("/srv/library/textures/brick.png")
	if err != nil {
		t.Fatal(err)
	}
	img, ok := a.(*asset.Image)
	if !ok {
		t.Fatalf("imported %T, want *asset.Image", a)
	}
	if img.Name != "brick" {
		t.Errorf("name = %q, want brick", img.Name)
	}
	if img.InputPath != "textures/brick.png" {
		t.Errorf("input path = %q", img.InputPath)
	}
	wantID, _ := lib.IdentifierOf("/srv/library/textures/brick.png")
	if img.ID != wantID {
		t.Errorf("identifier not derived from the relative path")
	}
	if img.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestImportMesh(t *testing.T) {
	imp, _, _ := newImporter(t)
	a, err := imp.Import("/srv/library/meshes/rock.obj")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.(*asset.Mesh); !ok {
		t.Fatalf("imported %T, want *asset.Mesh", a)
	}
	if a.Common().Name != "rock" {
		t.Errorf("name = %q, want rock", a.Common().Name)
	}
}

func TestImportRejections(t *testing.T) {
	imp, _, cat := newImporter(t)

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := imp.Import("/srv/library/notes.txt")
		var unsup *UnsupportedExtensionError
		if !errors.As(err, &unsup) {
			t.Fatalf("err = %v, want UnsupportedExtensionError", err)
		}
		if unsup.Ext != "txt" {
			t.Errorf("ext = %q", unsup.Ext)
		}
	})

	t.Run("missing extension", func(t *testing.T) {
		if _, err := imp.Import("/srv/library/Makefile"); !errors.Is(err, ErrMissingExtension) {
			t.Fatalf("err = %v, want ErrMissingExtension", err)
		}
	})

	t.Run("outside the library", func(t *testing.T) {
		if _, err := imp.Import("/tmp/outside.png"); err == nil {
			t.Fatal("expected error for path outside the library")
		}
	})

	t.Run("already tracked", func(t *testing.T) {
		a, err := imp.Import("/srv/library/textures/wall.png")
		if err != nil {
			t.Fatal(err)
		}
		cat.Insert(a)

		_, err = imp.Import("/srv/library/textures/wall.png")
		var tracked *AlreadyTrackedError
		if !errors.As(err, &tracked) {
			t.Fatalf("err = %v, want AlreadyTrackedError", err)
		}
		if tracked.ID != a.Common().ID {
			t.Errorf("reported id %s, want %s", tracked.ID, a.Common().ID)
		}
	})
}

func TestDefaultFormat(t *testing.T) {
	cases := []struct {
		base       string
		format     asset.Format
		packNormal bool
	}{
		{"brick_col.png", asset.FormatSrgbDxt1, false},
		{"wall_basecolor.tif", asset.FormatSrgbDxt1, false},
		{"floor_diffuse.jpg", asset.FormatSrgbDxt1, false},
		{"rock_disp.png", asset.FormatR8, false},
		{"brick_nrm.png", asset.FormatDxt5, true},
		{"brick_normal.png", asset.FormatDxt5, true},
		{"brick_rough.png", asset.FormatR8, false},
		{"brick_ao.png", asset.FormatR8, false},
		{"brick_metallic.png", asset.FormatR8, false},
		{"brick_alpha.png", asset.FormatR8, false},
		// Case-sensitive: uppercase conventions fall through to the default.
		{"wall_Normal.png", asset.FormatRgba8, false},
		{"photo.png", asset.FormatRgba8, false},
	}
	for _, tc := range cases {
		format, pack := defaultFormat(tc.base)
		if format != tc.format || pack != tc.packNormal {
			t.Errorf("defaultFormat(%q) = %s, %v; want %s, %v",
				tc.base, format, pack, tc.format, tc.packNormal)
		}
	}
}
