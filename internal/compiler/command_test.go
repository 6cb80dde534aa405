package compiler

import (
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/library"
)

var testLib = library.New("/srv/library", "/srv/out")

func meta(name string) asset.Meta {
	return asset.Meta{ID: uuid.New(), Name: name, UpdatedAt: time.Now().UTC()}
}

func TestMaterializeImage(t *testing.T) {
	a := &asset.Image{
		Meta:          meta("brick_nrm"),
		InputPath:     "textures/brick_nrm.png",
		Format:        asset.FormatDxt5,
		PackNormalMap: true,
		VFlip:         true,
	}
	cmd, err := Materialize(a, testLib, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Tool != ToolImage {
		t.Fatalf("tool = %q", cmd.Tool)
	}
	assertFlag(t, cmd.Args, "--input", testLib.ToAbsolute("textures/brick_nrm.png"))
	assertFlag(t, cmd.Args, "--output", testLib.OutputPath(a.ID))
	assertFlag(t, cmd.Args, "--format", "dxt5")
	if !slices.Contains(cmd.Args, "--pack-normal-map") {
		t.Error("missing --pack-normal-map")
	}
	if !slices.Contains(cmd.Args, "--v-flip") {
		t.Error("missing --v-flip")
	}
	if slices.Contains(cmd.Args, "--h-flip") {
		t.Error("unexpected --h-flip")
	}
}

func TestMaterializeMesh(t *testing.T) {
	t.Run("bare mesh has only input and output", func(t *testing.T) {
		a := &asset.Mesh{Meta: meta("rock"), InputPath: "meshes/rock.obj"}
		cmd, err := Materialize(a, testLib, nil)
		if err != nil {
			t.Fatal(err)
		}
		if cmd.Tool != ToolMesh {
			t.Fatalf("tool = %q", cmd.Tool)
		}
		if len(cmd.Args) != 4 {
			t.Fatalf("args = %v, want only --input/--output pairs", cmd.Args)
		}
	})

	t.Run("optionals are rendered when set", func(t *testing.T) {
		geo := uint(3)
		lod := uint(1)
		a := &asset.Mesh{
			Meta:               meta("rock"),
			InputPath:          "meshes/rock.obj",
			IndexType:          asset.IndexU32,
			VertexFormat:       asset.VertexPositionNormalUv,
			ObjectName:         "rock_low",
			GeometryIndex:      &geo,
			LOD:                &lod,
			RecalculateNormals: true,
		}
		cmd, err := Materialize(a, testLib, nil)
		if err != nil {
			t.Fatal(err)
		}
		assertFlag(t, cmd.Args, "--index-type", "u32")
		assertFlag(t, cmd.Args, "--vertex-format", "pnu")
		assertFlag(t, cmd.Args, "--object-name", "rock_low")
		assertFlag(t, cmd.Args, "--geometry-index", "3")
		assertFlag(t, cmd.Args, "--lod", "1")
		if !slices.Contains(cmd.Args, "--recalculate-normals") {
			t.Error("missing --recalculate-normals")
		}
	})
}

func TestMaterializeMaterial(t *testing.T) {
	albedo := uuid.New()
	rough := float32(0.4)
	color := [3]float32{1, 0.5, 0.25}
	a := &asset.Material{
		Meta:        meta("wall"),
		BlendMode:   asset.BlendMasked,
		AlbedoColor: &color,
		Roughness:   &rough,
		AlbedoMap:   &albedo,
	}
	cmd, err := Materialize(a, testLib, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Tool != ToolMaterial {
		t.Fatalf("tool = %q", cmd.Tool)
	}
	assertFlag(t, cmd.Args, "--output", testLib.OutputPath(a.ID))
	assertFlag(t, cmd.Args, "--blend-mode", "masked")
	assertFlag(t, cmd.Args, "--albedo-color", "1,0.5,0.25")
	assertFlag(t, cmd.Args, "--roughness", "0.4")
	assertFlag(t, cmd.Args, "--albedo-map", albedo.String())
	if slices.Contains(cmd.Args, "--metallic") {
		t.Error("unset scalar was rendered")
	}
	if slices.Contains(cmd.Args, "--input") {
		t.Error("material has no input file")
	}
}

func TestMaterializeOverrides(t *testing.T) {
	a := &asset.Image{Meta: meta("a"), InputPath: "a.png", Format: asset.FormatRgba8}
	cmd, err := Materialize(a, testLib, map[string]string{ToolImage: "/opt/tools/img2bf-v2"})
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Tool != "/opt/tools/img2bf-v2" {
		t.Fatalf("tool = %q, override not applied", cmd.Tool)
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Tool: "img2bf", Args: []string{"--input", "a.png", "--format", "rgba"}}
	want := "img2bf --input a.png --format rgba"
	if got := cmd.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func assertFlag(t *testing.T, args []string, flag, want string) {
	t.Helper()
	i := slices.Index(args, flag)
	if i < 0 {
		t.Errorf("missing %s in %v", flag, args)
		return
	}
	if i+1 >= len(args) {
		t.Errorf("%s has no value (args %v)", flag, args)
		return
	}
	if args[i+1] != want {
		t.Errorf("%s = %q, want %q", flag, args[i+1], want)
	}
}
