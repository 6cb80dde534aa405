// Package compiler schedules external importer tools with bounded
// concurrency and records every attempt in the catalog.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/library"
)

// Tool names. The settings record may remap them to explicit executable
// paths; otherwise they are resolved on PATH.
const (
	ToolImage    = "img2bf"
	ToolMesh     = "obj2bf"
	ToolMaterial = "matcomp"
)

// Command is a fully materialized external tool invocation.
type Command struct {
	Tool string
	Args []string
}

// String renders the invocation the way it is persisted in compilation
// records.
func (c Command) String() string {
	return c.Tool + " " + strings.Join(c.Args, " ")
}

// Materialize builds the tool invocation for an asset record. overrides maps
// tool names to executable paths and may be nil.
func Materialize(a asset.Asset, lib library.Library, overrides map[string]string) (Command, error) {
	output := lib.OutputPath(a.Common().ID)

	var cmd Command
	switch v := a.(type) {
	case *asset.Image:
		cmd.Tool = ToolImage
		cmd.Args = append(cmd.Args,
			"--input", lib.ToAbsolute(v.InputPath),
			"--output", output,
			"--format", v.Format.Token(),
		)
		if v.PackNormalMap {
			cmd.Args = append(cmd.Args, "--pack-normal-map")
		}
		if v.VFlip {
			cmd.Args = append(cmd.Args, "--v-flip")
		}
		if v.HFlip {
			cmd.Args = append(cmd.Args, "--h-flip")
		}

	case *asset.Mesh:
		cmd.Tool = ToolMesh
		cmd.Args = append(cmd.Args,
			"--input", lib.ToAbsolute(v.InputPath),
			"--output", output,
		)
		if v.IndexType != "" {
			cmd.Args = append(cmd.Args, "--index-type", v.IndexType.Token())
		}
		if v.VertexFormat != "" {
			cmd.Args = append(cmd.Args, "--vertex-format", v.VertexFormat.Token())
		}
		if v.ObjectName != "" {
			cmd.Args = append(cmd.Args, "--object-name", v.ObjectName)
		}
		if v.GeometryIndex != nil {
			cmd.Args = append(cmd.Args, "--geometry-index", strconv.FormatUint(uint64(*v.GeometryIndex), 10))
		}
		if v.LOD != nil {
			cmd.Args = append(cmd.Args, "--lod", strconv.FormatUint(uint64(*v.LOD), 10))
		}
		if v.RecalculateNormals {
			cmd.Args = append(cmd.Args, "--recalculate-normals")
		}

	case *asset.Material:
		cmd.Tool = ToolMaterial
		cmd.Args = append(cmd.Args, "--output", output)
		if v.BlendMode != "" {
			cmd.Args = append(cmd.Args, "--blend-mode", v.BlendMode.Token())
		}
		if v.AlbedoColor != nil {
			c := *v.AlbedoColor
			cmd.Args = append(cmd.Args, "--albedo-color",
				fmt.Sprintf("%g,%g,%g", c[0], c[1], c[2]))
		}
		appendScalar := func(flag string, val *float32) {
			if val != nil {
				cmd.Args = append(cmd.Args, flag, strconv.FormatFloat(float64(*val), 'g', -1, 32))
			}
		}
		appendScalar("--roughness", v.Roughness)
		appendScalar("--metallic", v.Metallic)
		appendScalar("--alpha-cutoff", v.AlphaCutoff)
		appendScalar("--ior", v.IOR)
		appendScalar("--opacity", v.Opacity)
		appendMap := func(flag string, id *uuid.UUID) {
			if id != nil {
				cmd.Args = append(cmd.Args, flag, id.String())
			}
		}
		appendMap("--albedo-map", v.AlbedoMap)
		appendMap("--normal-map", v.NormalMap)
		appendMap("--displacement-map", v.DisplacementMap)
		appendMap("--roughness-map", v.RoughnessMap)
		appendMap("--opacity-map", v.OpacityMap)
		appendMap("--ao-map", v.AOMap)
		appendMap("--metallic-map", v.MetallicMap)

	default:
		return Command{}, fmt.Errorf("no compiler for asset kind %q", a.Kind())
	}

	if path, ok := overrides[cmd.Tool]; ok && path != "" {
		cmd.Tool = path
	}
	return cmd, nil
}
