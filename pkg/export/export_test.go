package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"golang.org/x/image/bmp"

	smath "github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

func solidImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(color.White)))
	return buf.Bytes()
}

// texturedScene registers a two-material strip under a node and returns the
// registry and the node id. Material 1 carries a texture.
func texturedScene(t *testing.T) (*scene.Registry, string) {
	t.Helper()
	reg := scene.NewRegistry()
	m := quadStrip(2)
	m.FaceMaterials = []int{0, 0, 1, 1}
	m.Materials = []scene.Material{
		{Name: "red", BaseColor: [4]float32{1, 0, 0, 1}, Roughness: 0.5},
		{Name: "white", BaseColor: [4]float32{1, 1, 1, 1}, Roughness: 0.5},
	}
	m.Textures = map[string]scene.Texture{
		"base_color_texture_1": {Data: pngBytes(t)},
	}
	meshID := reg.RegisterMesh(m, "strip")
	nodeID := reg.RegisterNode(scene.NewNode(meshID, smath.Vec3{Y: 1}, smath.Vec3{}, smath.Vec3{X: 1, Y: 1, Z: 1}), "placed")
	return reg, nodeID
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"glb", FormatGLB, false},
		{".OBJ", FormatOBJ, false},
		{" stl ", FormatSTL, false},
		{"fbx", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrUnsupportedFormat, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestExportNothing(t *testing.T) {
	reg := scene.NewRegistry()
	exp := NewExporter(reg, nil)

	for _, roots := range [][]string{nil, {"missing-id"}} {
		out := filepath.Join(t.TempDir(), "scene.glb")
		res, err := exp.Export(roots, out, Options{Format: FormatGLB})
		assert.ErrorIs(t, err, ErrNothingToExport)
		assert.NoFileExists(t, out)
		if len(roots) > 0 {
			require.NotNil(t, res)
			assert.ErrorIs(t, res.Warnings, scene.ErrMissingEntity)
		}
	}
}

func TestExportSkipsInvalidMeshes(t *testing.T) {
	short := quadStrip(1)
	short.FaceMaterials = []int{0}

	outOfRange := quadStrip(1)
	outOfRange.Triangles[1] = [3]uint32{0, 1, 7}

	normals := quadStrip(1)
	normals.Normals = normals.Normals[:1]

	uvs := quadStrip(1)
	uvs.UVs = uvs.UVs[:2]

	reg := scene.NewRegistry()
	good := reg.RegisterMesh(quadStrip(1), "good")
	bad := []string{
		reg.RegisterMesh(short, "short"),
		reg.RegisterMesh(outOfRange, "out-of-range"),
		reg.RegisterMesh(normals, "normals"),
		reg.RegisterMesh(uvs, "uvs"),
		reg.RegisterNode(nil, "nil-node"),
	}
	exp := NewExporter(reg, nil)

	t.Run("dropped with warnings", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "scene.stl")
		res, err := exp.Export(append([]string{good}, bad...), out, Options{Format: FormatSTL})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Stats.Triangles, "only the valid mesh is written")
		assert.ErrorIs(t, res.Warnings, scene.ErrInvalidMesh)
		assert.ErrorIs(t, res.Warnings, scene.ErrMissingEntity)
		assert.Len(t, multierr.Errors(res.Warnings), len(bad))
	})

	t.Run("nothing valid", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "scene.glb")
		res, err := exp.Export(bad, out, Options{Format: FormatGLB})
		assert.ErrorIs(t, err, ErrNothingToExport)
		assert.NoFileExists(t, out)
		require.NotNil(t, res)
		assert.ErrorIs(t, res.Warnings, scene.ErrInvalidMesh)
	})

	t.Run("split ignores them", func(t *testing.T) {
		assert.Empty(t, Split(placement(short, smath.Identity()), smath.Identity()))
	})
}

func TestExportHelpersOnlyIsNothing(t *testing.T) {
	exp := NewExporter(scene.NewRegistry(), nil)
	out := filepath.Join(t.TempDir(), "scene.glb")

	_, err := exp.Export(nil, out, Options{Format: FormatGLB, IncludeHelpers: true})
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.NoFileExists(t, out)
}

func TestExportRejectsOptions(t *testing.T) {
	reg, id := texturedScene(t)
	exp := NewExporter(reg, nil)
	dir := t.TempDir()

	_, err := exp.Export([]string{id}, filepath.Join(dir, "a.fbx"), Options{Format: "fbx"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = exp.Export([]string{id}, filepath.Join(dir, "a.glb"), Options{Format: FormatGLB, UpAxis: "W"})
	assert.ErrorIs(t, err, smath.ErrUnknownUpAxis)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportGLB(t *testing.T) {
	reg, id := texturedScene(t)
	exp := NewExporter(reg, nil)
	out := filepath.Join(t.TempDir(), "scene.glb")

	res, err := exp.Export([]string{id}, out, Options{Format: FormatGLB})
	require.NoError(t, err)
	assert.NoError(t, res.Warnings)
	assert.Equal(t, []string{out}, res.Files)
	assert.Equal(t, 2, res.Stats.Primitives)
	assert.Equal(t, 4, res.Stats.Triangles)
	assert.Equal(t, 2, res.Stats.Materials)

	doc, err := gltf.Open(out)
	require.NoError(t, err)
	assert.Equal(t, "scenebake", doc.Asset.Generator)
	require.Len(t, doc.Meshes, 1)
	assert.Equal(t, "placed", doc.Meshes[0].Name)
	require.Len(t, doc.Meshes[0].Primitives, 2)
	require.Len(t, doc.Materials, 2)
	assert.Len(t, doc.Images, 1)
	assert.Len(t, doc.Textures, 1)

	assert.Equal(t, "red", doc.Materials[0].Name)
	assert.Nil(t, doc.Materials[0].PBRMetallicRoughness.BaseColorTexture)
	require.NotNil(t, doc.Materials[1].PBRMetallicRoughness.BaseColorTexture)

	for _, p := range doc.Meshes[0].Primitives {
		assert.Contains(t, p.Attributes, "POSITION")
		assert.Contains(t, p.Attributes, "NORMAL")
		assert.Contains(t, p.Attributes, "TEXCOORD_0")
		require.NotNil(t, p.Indices)
		assert.Equal(t, uint32(6), doc.Accessors[*p.Indices].Count)
	}
}

func TestExportGLBWithHelpers(t *testing.T) {
	reg, id := texturedScene(t)
	exp := NewExporter(reg, nil)
	out := filepath.Join(t.TempDir(), "scene.glb")

	res, err := exp.Export([]string{id}, out, Options{Format: FormatGLB, IncludeHelpers: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Primitives, "helpers are not counted")

	doc, err := gltf.Open(out)
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 2)
	assert.Equal(t, "helpers", doc.Meshes[0].Name)
	assert.Len(t, doc.Meshes[0].Primitives, 4)
	assert.Len(t, doc.Scenes[0].Nodes, 2)
}

func TestExportTextureWithoutUVs(t *testing.T) {
	reg := scene.NewRegistry()
	m := quadStrip(1)
	m.UVs = nil
	m.Textures = map[string]scene.Texture{scene.BaseColorTextureSlot: {Image: solidImage(color.White)}}
	id := reg.RegisterMesh(m, "")

	out := filepath.Join(t.TempDir(), "scene.glb")
	res, err := NewExporter(reg, nil).Export([]string{id}, out, Options{Format: FormatGLB})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Warnings, ErrUnsupportedTexture)

	doc, err := gltf.Open(out)
	require.NoError(t, err)
	assert.Empty(t, doc.Images)
}

func TestExportUnsupportedTextureFallsBack(t *testing.T) {
	reg := scene.NewRegistry()
	m := quadStrip(1)
	m.Materials = []scene.Material{{Name: "base", BaseColor: [4]float32{0, 0, 1, 1}}}
	m.Textures = map[string]scene.Texture{scene.BaseColorTextureSlot: {Data: []byte("definitely not an image")}}
	id := reg.RegisterMesh(m, "")

	out := filepath.Join(t.TempDir(), "scene.glb")
	res, err := NewExporter(reg, nil).Export([]string{id}, out, Options{Format: FormatGLB})
	require.NoError(t, err)
	require.Len(t, multierr.Errors(res.Warnings), 1)
	assert.ErrorIs(t, res.Warnings, ErrUnsupportedTexture)

	doc, err := gltf.Open(out)
	require.NoError(t, err)
	require.Len(t, doc.Materials, 1)
	assert.Nil(t, doc.Materials[0].PBRMetallicRoughness.BaseColorTexture)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, *doc.Materials[0].PBRMetallicRoughness.BaseColorFactor)
}

func TestExportOBJ(t *testing.T) {
	reg, id := texturedScene(t)
	exp := NewExporter(reg, nil)
	dir := t.TempDir()
	out := filepath.Join(dir, "scene.obj")

	res, err := exp.Export([]string{id}, out, Options{Format: FormatOBJ})
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	assert.Equal(t, out, res.Files[len(res.Files)-1], "primary file is committed last")

	mtl, err := os.ReadFile(filepath.Join(dir, "scene.mtl"))
	require.NoError(t, err)
	assert.Contains(t, string(mtl), "newmtl red")
	assert.Contains(t, string(mtl), "newmtl white")
	assert.Contains(t, string(mtl), "map_Kd scene_0.png")
	assert.FileExists(t, filepath.Join(dir, "scene_0.png"))

	obj, err := os.ReadFile(out)
	require.NoError(t, err)
	var faces, verts, uvs int
	for _, line := range strings.Split(string(obj), "\n") {
		switch {
		case strings.HasPrefix(line, "f "):
			faces++
			assert.Len(t, strings.Fields(line), 4)
			assert.Equal(t, 2, strings.Count(strings.Fields(line)[1], "/"))
		case strings.HasPrefix(line, "v "):
			verts++
		case strings.HasPrefix(line, "vt "):
			uvs++
		}
	}
	assert.Equal(t, 4, faces)
	assert.Equal(t, res.Stats.Vertices, verts)
	assert.Equal(t, verts, uvs)
	assert.Contains(t, string(obj), "mtllib scene.mtl")
	assert.Contains(t, string(obj), "usemtl red")
}

func TestExportOBJFlipsV(t *testing.T) {
	prims := []Primitive{{
		Name:      "p",
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		UVs:       [][2]float32{{0, 0}, {1, 0.25}, {0, 1}},
		Indices:   []uint32{0, 1, 2},
	}}
	var buf bytes.Buffer
	require.NoError(t, writeOBJ(&buf, prims, "x.mtl", objMaterialNames(prims)))
	assert.Contains(t, buf.String(), "vt 0 1\n")
	assert.Contains(t, buf.String(), "vt 1 0.75\n")
	assert.Contains(t, buf.String(), "f 1/1 2/2 3/3\n")
}

func TestObjMaterialNamesUnique(t *testing.T) {
	prims := []Primitive{
		{Material: scene.Material{Name: "stone wall"}},
		{Material: scene.Material{Name: "stone wall"}},
		{MaterialIndex: 3},
	}
	assert.Equal(t, []string{"stone_wall", "stone_wall_1", "material_3"}, objMaterialNames(prims))
}

func TestExportSTL(t *testing.T) {
	reg, id := texturedScene(t)
	exp := NewExporter(reg, nil)
	out := filepath.Join(t.TempDir(), "scene.stl")

	res, err := exp.Export([]string{id}, out, Options{Format: FormatSTL, IncludeHelpers: true})
	require.NoError(t, err)
	assert.NoError(t, res.Warnings, "materials and textures are dropped silently")

	info, err := os.Stat(out)
	require.NoError(t, err)

	// 4 scene triangles plus helpers: 3 boxes and a 10 division grid.
	n := 4 + 3*12 + 2*2*11
	assert.Equal(t, int64(84+50*n), info.Size())
}

func TestWriteSTLFacetNormal(t *testing.T) {
	prims := []Primitive{{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
	}}
	var buf bytes.Buffer
	require.NoError(t, writeSTL(&buf, prims))
	require.Equal(t, 84+50, buf.Len())

	assert.True(t, strings.HasPrefix(buf.String(), stlHeader))
	assert.Equal(t, [3]float32{0, 0, 1}, facetNormal(prims[0].Positions[0], prims[0].Positions[1], prims[0].Positions[2]))
}

func TestExportWriteFailure(t *testing.T) {
	reg, id := texturedScene(t)
	exp := NewExporter(reg, nil)
	dir := t.TempDir()

	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	for _, format := range []Format{FormatGLB, FormatOBJ, FormatSTL} {
		out := filepath.Join(blocker, "scene."+string(format))
		_, err := exp.Export([]string{id}, out, Options{Format: format})
		assert.ErrorIs(t, err, ErrWrite, string(format))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no partial output")
}

func TestExportCommitFailureRestoresCompanions(t *testing.T) {
	reg, id := texturedScene(t)
	dir := t.TempDir()
	mtl := filepath.Join(dir, "scene.mtl")
	require.NoError(t, os.WriteFile(mtl, []byte("old"), 0644))

	// A non-empty directory where the OBJ goes makes its replace fail after
	// the image and the material library were moved into place.
	out := filepath.Join(dir, "scene.obj")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "keep"), 0755))

	_, err := NewExporter(reg, nil).Export([]string{id}, out, Options{Format: FormatOBJ})
	require.ErrorIs(t, err, ErrWrite)

	data, err := os.ReadFile(mtl)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "previous material library is restored")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"scene.mtl", "scene.obj"}, names, "no image or backup left behind")
}

func TestExportReplacesExisting(t *testing.T) {
	reg, id := texturedScene(t)
	out := filepath.Join(t.TempDir(), "scene.stl")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0644))

	_, err := NewExporter(reg, nil).Export([]string{id}, out, Options{Format: FormatSTL})
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(84+50*4), info.Size())
}

func TestBuildUpAxis(t *testing.T) {
	reg, id := texturedScene(t)
	exp := NewExporter(reg, nil)

	y, err := exp.Build([]string{id}, Options{Format: FormatGLB, UpAxis: smath.UpY})
	require.NoError(t, err)
	z, err := exp.Build([]string{id}, Options{Format: FormatGLB, UpAxis: smath.UpZ})
	require.NoError(t, err)

	require.Len(t, z.Primitives, len(y.Primitives))
	for i := range y.Primitives {
		want := smath.TransformPoints(y.Primitives[i].Positions, smath.RotateXDeg(-90))
		assertPointsNear(t, want, z.Primitives[i].Positions)
	}
}

func TestEmbedTexture(t *testing.T) {
	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, solidImage(color.Black)))

	tests := []struct {
		name string
		tex  scene.Texture
		ok   bool
		mime string
	}{
		{"png passthrough", scene.Texture{Data: pngBytes(t)}, true, "image/png"},
		{"decoded image", scene.Texture{Image: solidImage(color.White)}, true, "image/png"},
		{"bmp converted", scene.Texture{Data: bmpBuf.Bytes()}, true, "image/png"},
		{"empty", scene.Texture{}, false, ""},
		{"garbage", scene.Texture{Data: []byte("hello world")}, false, ""},
		{"not an image", scene.Texture{Data: []byte("%PDF-1.4\n")}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EmbedTexture(tt.tex)
			assert.Equal(t, tt.ok, res.OK)
			if !tt.ok {
				assert.ErrorIs(t, res.Err, ErrUnsupportedTexture)
				assert.Empty(t, res.Image.Data)
				return
			}
			assert.NoError(t, res.Err)
			assert.Equal(t, tt.mime, res.Image.MIMEType)
			_, err := png.Decode(bytes.NewReader(res.Image.Data))
			assert.NoError(t, err)
		})
	}

	data := pngBytes(t)
	assert.Equal(t, data, EmbedTexture(scene.Texture{Data: data}).Image.Data, "png bytes are not re-encoded")
}
