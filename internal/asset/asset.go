// Package asset defines the catalog data model: the tagged asset union
// (Image, Mesh, Material), importer configuration enums, and compilation
// records. The JSON encoding here is the persisted catalog format, so any
// change to field names or the "type" tag is a breaking change for existing
// libraries.
package asset

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the asset union. The values double as the JSON
// "type" tag in the persisted catalog.
type Kind string

const (
	KindImage    Kind = "Image"
	KindMesh     Kind = "Mesh"
	KindMaterial Kind = "Material"
)

// Asset is one catalog entry. Concrete variants are *Image, *Mesh and
// *Material; consumers needing the shared fields go through Common.
type Asset interface {
	// Common returns the fields shared by every variant.
	Common() *Meta
	// Kind reports the variant tag.
	Kind() Kind
	// SourcePath returns the library-relative input path and true for
	// variants backed by a source file. Materials are synthesized and
	// report false.
	SourcePath() (string, bool)
	// Clone returns a deep copy. Records handed out by the catalog are
	// read concurrently; mutate a clone and store it back instead of
	// writing through the shared pointer.
	Clone() Asset
}

// Meta holds the fields common to all asset variants.
type Meta struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Touch advances UpdatedAt to the current UTC time.
func (m *Meta) Touch() { m.UpdatedAt = time.Now().UTC() }

// Image is a texture source file plus its importer configuration.
type Image struct {
	Meta          `yaml:",inline"`
	InputPath     string `json:"input_path" yaml:"input_path"`
	Format        Format `json:"format" yaml:"format"`
	PackNormalMap bool   `json:"pack_normal_map,omitempty" yaml:"pack_normal_map,omitempty"`
	VFlip         bool   `json:"v_flip,omitempty" yaml:"v_flip,omitempty"`
	HFlip         bool   `json:"h_flip,omitempty" yaml:"h_flip,omitempty"`
}

func (a *Image) Common() *Meta              { return &a.Meta }
func (a *Image) Kind() Kind                 { return KindImage }
func (a *Image) SourcePath() (string, bool) { return a.InputPath, true }

// Mesh is a geometry source file plus its importer configuration.
// Unset optionals are omitted from the compile command.
type Mesh struct {
	Meta               `yaml:",inline"`
	InputPath          string       `json:"input_path" yaml:"input_path"`
	IndexType          IndexType    `json:"index_type,omitempty" yaml:"index_type,omitempty"`
	VertexFormat       VertexFormat `json:"vertex_format,omitempty" yaml:"vertex_format,omitempty"`
	ObjectName         string       `json:"object_name,omitempty" yaml:"object_name,omitempty"`
	GeometryIndex      *uint        `json:"geometry_index,omitempty" yaml:"geometry_index,omitempty"`
	LOD                *uint        `json:"lod,omitempty" yaml:"lod,omitempty"`
	RecalculateNormals bool         `json:"recalculate_normals,omitempty" yaml:"recalculate_normals,omitempty"`
}

func (a *Mesh) Common() *Meta              { return &a.Meta }
func (a *Mesh) Kind() Kind                 { return KindMesh }
func (a *Mesh) SourcePath() (string, bool) { return a.InputPath, true }

// Material is a synthesized asset: it has no source file of its own and is
// compiled purely from its record. Map fields reference other assets by
// identifier.
type Material struct {
	Meta            `yaml:",inline"`
	BlendMode       BlendMode   `json:"blend_mode,omitempty" yaml:"blend_mode,omitempty"`
	AlbedoColor     *[3]float32 `json:"albedo_color,omitempty" yaml:"albedo_color,omitempty"`
	Roughness       *float32    `json:"roughness,omitempty" yaml:"roughness,omitempty"`
	Metallic        *float32    `json:"metallic,omitempty" yaml:"metallic,omitempty"`
	AlphaCutoff     *float32    `json:"alpha_cutoff,omitempty" yaml:"alpha_cutoff,omitempty"`
	IOR             *float32    `json:"ior,omitempty" yaml:"ior,omitempty"`
	Opacity         *float32    `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	AlbedoMap       *uuid.UUID  `json:"albedo_map,omitempty" yaml:"albedo_map,omitempty"`
	NormalMap       *uuid.UUID  `json:"normal_map,omitempty" yaml:"normal_map,omitempty"`
	DisplacementMap *uuid.UUID  `json:"displacement_map,omitempty" yaml:"displacement_map,omitempty"`
	RoughnessMap    *uuid.UUID  `json:"roughness_map,omitempty" yaml:"roughness_map,omitempty"`
	OpacityMap      *uuid.UUID  `json:"opacity_map,omitempty" yaml:"opacity_map,omitempty"`
	AOMap           *uuid.UUID  `json:"ao_map,omitempty" yaml:"ao_map,omitempty"`
	MetallicMap     *uuid.UUID  `json:"metallic_map,omitempty" yaml:"metallic_map,omitempty"`
}

func (a *Material) Common() *Meta              { return &a.Meta }
func (a *Material) Kind() Kind                 { return KindMaterial }
func (a *Material) SourcePath() (string, bool) { return "", false }

func (a *Image) Clone() Asset {
	cp := *a
	cp.Tags = slices.Clone(a.Tags)
	return &cp
}

func (a *Mesh) Clone() Asset {
	cp := *a
	cp.Tags = slices.Clone(a.Tags)
	cp.GeometryIndex = clonePtr(a.GeometryIndex)
	cp.LOD = clonePtr(a.LOD)
	return &cp
}

func (a *Material) Clone() Asset {
	cp := *a
	cp.Tags = slices.Clone(a.Tags)
	cp.AlbedoColor = clonePtr(a.AlbedoColor)
	cp.Roughness = clonePtr(a.Roughness)
	cp.Metallic = clonePtr(a.Metallic)
	cp.AlphaCutoff = clonePtr(a.AlphaCutoff)
	cp.IOR = clonePtr(a.IOR)
	cp.Opacity = clonePtr(a.Opacity)
	cp.AlbedoMap = clonePtr(a.AlbedoMap)
	cp.NormalMap = clonePtr(a.NormalMap)
	cp.DisplacementMap = clonePtr(a.DisplacementMap)
	cp.RoughnessMap = clonePtr(a.RoughnessMap)
	cp.OpacityMap = clonePtr(a.OpacityMap)
	cp.AOMap = clonePtr(a.AOMap)
	cp.MetallicMap = clonePtr(a.MetallicMap)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MarshalJSON emits the variant with its "type" tag.
func (a *Image) MarshalJSON() ([]byte, error) {
	type plain Image
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*plain
	}{KindImage, (*plain)(a)})
}

func (a *Mesh) MarshalJSON() ([]byte, error) {
	type plain Mesh
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*plain
	}{KindMesh, (*plain)(a)})
}

func (a *Material) MarshalJSON() ([]byte, error) {
	type plain Material
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*plain
	}{KindMaterial, (*plain)(a)})
}

// Unmarshal decodes one tagged asset document.
func Unmarshal(data []byte) (Asset, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("reading asset type tag: %w", err)
	}
	switch probe.Type {
	case KindImage:
		var a Image
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case KindMesh:
		var a Mesh
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case KindMaterial:
		var a Material
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, nil
	default:
		return nil, fmt.Errorf("unknown asset type %q", probe.Type)
	}
}

// List is a slice of tagged assets that round-trips through JSON.
type List []Asset

func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(List, 0, len(raw))
	for _, r := range raw {
		a, err := Unmarshal(r)
		if err != nil {
			return err
		}
		out = append(out, a)
	}
	*l = out
	return nil
}
