package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smath "github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

func TestParseOptimize(t *testing.T) {
	tests := []struct {
		in   string
		want Optimize
	}{
		{"", OptimizeNone},
		{"none", OptimizeNone},
		{"weld", OptimizeWeld},
		{"weld_vertices", OptimizeWeld},
		{" FULL ", OptimizeFull},
	}
	for _, tt := range tests {
		got, err := ParseOptimize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseOptimize("max")
	assert.ErrorIs(t, err, ErrUnsupportedOptimize)
}

// messyMesh has a vertex repeated at the origin, a triangle repeating the
// first one with reversed winding, and two triangles that collapse once the
// origin is welded. Vertex 4 is only used by a collapsing triangle.
func messyMesh() *scene.Mesh {
	return &scene.Mesh{
		Vertices: [][3]float32{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 0}, {5, 5, 5},
		},
		Triangles: [][3]uint32{{0, 1, 2}, {3, 2, 1}, {0, 3, 1}, {4, 4, 1}},
	}
}

func TestOptimizeWeld(t *testing.T) {
	prims := Split(placement(messyMesh(), smath.Identity()), smath.Identity())
	require.Len(t, prims, 1)
	p := prims[0]
	require.Len(t, p.Positions, 5)

	require.True(t, optimize(&p, OptimizeWeld))
	assert.Len(t, p.Positions, 4, "the repeated origin is merged")
	assert.Equal(t, 4, p.TriangleCount(), "weld keeps every triangle")
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 1, 0, 0, 1, 3, 3, 1}, p.Indices)
	assert.Nil(t, p.Normals)
}

func TestOptimizeWeldKeepsSeams(t *testing.T) {
	m := quadStrip(1)
	m.Vertices = append(m.Vertices, m.Vertices[0])
	m.Normals = append(m.Normals, m.Normals[0])
	m.UVs = append(m.UVs, [2]float32{0.5, 0.5})
	m.Triangles[0][0] = 4
	m.Triangles[1] = [3]uint32{0, 2, 3}

	prims := Split(placement(m, smath.Identity()), smath.Identity())
	require.Len(t, prims, 1)
	p := prims[0]
	n := len(p.Positions)

	optimize(&p, OptimizeWeld)
	assert.Len(t, p.Positions, n, "same position with a different UV stays separate")
	assert.Len(t, p.UVs, n)
	assert.Len(t, p.Normals, n)
}

func TestOptimizeFull(t *testing.T) {
	prims := Split(placement(messyMesh(), smath.Identity()), smath.Identity())
	require.Len(t, prims, 1)
	p := prims[0]

	require.True(t, optimize(&p, OptimizeFull))
	assert.Equal(t, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, p.Positions)
	assert.Equal(t, []uint32{0, 1, 2}, p.Indices)
	assert.Equal(t, []int{0}, p.SourceTriangles)

	require.Len(t, p.Normals, 3)
	for _, n := range p.Normals {
		assert.InDeltaSlice(t, []float32{0, 0, 1}, n[:], 1e-6)
	}
}

func TestOptimizeFullKeepsNormals(t *testing.T) {
	prims := Split(placement(quadStrip(2), smath.Identity()), smath.Identity())
	require.Len(t, prims, 1)
	p := prims[0]
	want := append([][3]float32(nil), p.Normals...)

	optimize(&p, OptimizeFull)
	assert.Equal(t, want, p.Normals)
	assert.Equal(t, 4, p.TriangleCount())
}

func TestOptimizeFullDropsCollapsedPrimitive(t *testing.T) {
	m := &scene.Mesh{
		Vertices:  [][3]float32{{0, 0, 0}, {0, 0, 0}, {1, 0, 0}},
		Triangles: [][3]uint32{{0, 1, 2}},
	}
	prims := Split(placement(m, smath.Identity()), smath.Identity())
	require.Len(t, prims, 1)
	assert.False(t, optimize(&prims[0], OptimizeFull))
}

func TestBuildOptimize(t *testing.T) {
	reg := scene.NewRegistry()
	id := reg.RegisterMesh(messyMesh(), "messy")
	exp := NewExporter(reg, nil)

	none, err := exp.Build([]string{id}, Options{Format: FormatGLB})
	require.NoError(t, err)
	assert.Equal(t, 5, none.Stats.Vertices)
	assert.Equal(t, 4, none.Stats.Triangles)

	full, err := exp.Build([]string{id}, Options{Format: FormatGLB, Optimize: OptimizeFull, IncludeHelpers: true})
	require.NoError(t, err)
	assert.Equal(t, 3, full.Stats.Vertices)
	assert.Equal(t, 1, full.Stats.Triangles)

	_, err = exp.Build([]string{id}, Options{Format: FormatGLB, Optimize: "max"})
	assert.ErrorIs(t, err, ErrUnsupportedOptimize)

	assert.NotEqual(t,
		Options{Format: FormatGLB}.Key(),
		Options{Format: FormatGLB, Optimize: OptimizeWeld}.Key())
}
