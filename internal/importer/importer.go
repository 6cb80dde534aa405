// Package importer derives initial asset records from source paths. It is
// pure heuristics over the file name: no file contents are read and nothing
// is inserted into the catalog here.
package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/catalog"
	"github.com/bfengine/assetpipe/internal/library"
)

// ErrMissingExtension is returned for paths without an extension.
var ErrMissingExtension = fmt.Errorf("file has no extension")

// AlreadyTrackedError reports that the path's identifier is already in the
// catalog. Import attempts for tracked files are a no-op at call sites.
type AlreadyTrackedError struct {
	ID uuid.UUID
}

func (e *AlreadyTrackedError) Error() string {
	return fmt.Sprintf("asset %s is already tracked", e.ID)
}

// UnsupportedExtensionError reports a file type no importer handles.
type UnsupportedExtensionError struct {
	Ext string
}

func (e *UnsupportedExtensionError) Error() string {
	return fmt.Sprintf("unsupported extension %q", e.Ext)
}

// Importer builds asset records for new source files.
type Importer struct {
	lib library.Library
	cat *catalog.Catalog
}

// New returns an importer over the given library and catalog.
func New(lib library.Library, cat *catalog.Catalog) *Importer {
	return &Importer{lib: lib, cat: cat}
}

// Import derives an asset record for the absolute source path. The caller
// inserts the returned record into the catalog.
func (imp *Importer) Import(abs string) (asset.Asset, error) {
	id, err := imp.lib.IdentifierOf(abs)
	if err != nil {
		return nil, err
	}
	if imp.cat.Has(id) {
		return nil, &AlreadyTrackedError{ID: id}
	}
	rel, err := imp.lib.ToRelative(abs)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(abs), "."))
	if ext == "" {
		return nil, ErrMissingExtension
	}

	base := filepath.Base(abs)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	switch ext {
	case "jpg", "png", "tif", "tiff":
		a := &asset.Image{
			Meta:      asset.Meta{ID: id, Name: name},
			InputPath: rel,
		}
		a.Format, a.PackNormalMap = defaultFormat(base)
		a.Touch()
		return a, nil
	case "obj":
		a := &asset.Mesh{
			Meta:      asset.Meta{ID: id, Name: name},
			InputPath: rel,
		}
		a.Touch()
		return a, nil
	default:
		return nil, &UnsupportedExtensionError{Ext: ext}
	}
}

// formatPattern pairs a file name substring with the format it implies.
// Patterns are checked in order; the first match wins. Matching is
// case-sensitive, which mirrors common texture naming conventions
// (brick_col.png, wall_Normal.png would NOT match).
type formatPattern struct {
	substr     string
	format     asset.Format
	packNormal bool
}

var formatPatterns = []formatPattern{
	// Albedo / base color.
	{substr: "_col.", format: asset.FormatSrgbDxt1},
	{substr: "_color.", format: asset.FormatSrgbDxt1},
	{substr: "diffuse.", format: asset.FormatSrgbDxt1},
	{substr: "_albedo.", format: asset.FormatSrgbDxt1},
	{substr: "_basecolor.", format: asset.FormatSrgbDxt1},
	// Displacement.
	{substr: "_disp.", format: asset.FormatR8},
	{substr: "_displacement.", format: asset.FormatR8},
	// Normal maps get channel packing.
	{substr: "_nrm.", format: asset.FormatDxt5, packNormal: true},
	{substr: "_normal.", format: asset.FormatDxt5, packNormal: true},
	{substr: "_normalmap.", format: asset.FormatDxt5, packNormal: true},
	// Single-channel masks.
	{substr: "_rgh.", format: asset.FormatR8},
	{substr: "_rough.", format: asset.FormatR8},
	{substr: "_roughness.", format: asset.FormatR8},
	{substr: "_gls.", format: asset.FormatR8},
	{substr: "_gloss.", format: asset.FormatR8},
	{substr: "_glossiness.", format: asset.FormatR8},
	{substr: "_ao.", format: asset.FormatR8},
	{substr: "_occlusion.", format: asset.FormatR8},
	{substr: "_met.", format: asset.FormatR8},
	{substr: "_metallic.", format: asset.FormatR8},
	{substr: "_opacity.", format: asset.FormatR8},
	{substr: "_alpha.", format: asset.FormatR8},
}

// defaultFormat guesses the target format from the file name.
func defaultFormat(base string) (asset.Format, bool) {
	for _, p := range formatPatterns {
		if strings.Contains(base, p.substr) {
			return p.format, p.packNormal
		}
	}
	return asset.FormatRgba8, false
}
