package export

import (
	"fmt"

	"github.com/Faultbox/scenebake/pkg/scene"
)

// Helper geometry defaults.
const (
	DefaultHelperSize    = 1.0
	DefaultGridDivisions = 10

	axisThicknessRatio = 0.008
	gridLineRatio      = 0.002
	helperGroup        = "helpers"
)

var (
	axisColors = [3][4]float32{
		{0.9, 0.1, 0.1, 1}, // X
		{0.1, 0.8, 0.1, 1}, // Y
		{0.1, 0.2, 0.9, 1}, // Z
	}
	gridColor = [4]float32{0.5, 0.5, 0.5, 1}
)

// Helpers returns untransformed debug geometry: three axis bars of length size
// along +X, +Y and +Z, and a size x size reference grid on the XZ plane
// centered on the origin with the given number of divisions.
func Helpers(size float32, divisions int) []Primitive {
	if size <= 0 {
		size = DefaultHelperSize
	}
	if divisions <= 0 {
		divisions = DefaultGridDivisions
	}

	t := size * axisThicknessRatio
	bars := [3][2][3]float32{
		{{0, -t, -t}, {size, t, t}},
		{{-t, 0, -t}, {t, size, t}},
		{{-t, -t, 0}, {t, t, size}},
	}

	prims := make([]Primitive, 0, 4)
	for i, bar := range bars {
		p := boxPrimitive(bar[0], bar[1])
		p.Name = fmt.Sprintf("axis_%c", 'x'+i)
		p.Material = scene.Material{Name: p.Name, BaseColor: axisColors[i], Roughness: 1}
		prims = append(prims, p)
	}
	prims = append(prims, gridPrimitive(size, divisions))

	for i := range prims {
		prims[i].Group = helperGroup
		prims[i].Helper = true
	}
	return prims
}

// boxPrimitive builds an axis-aligned box with per-face normals
// (24 vertices, 12 triangles).
func boxPrimitive(lo, hi [3]float32) Primitive {
	minX, minY, minZ := lo[0], lo[1], lo[2]
	maxX, maxY, maxZ := hi[0], hi[1], hi[2]

	faces := []struct {
		n       [3]float32
		corners [4][3]float32
	}{
		{[3]float32{1, 0, 0}, [4][3]float32{{maxX, minY, minZ}, {maxX, maxY, minZ}, {maxX, maxY, maxZ}, {maxX, minY, maxZ}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{minX, minY, maxZ}, {minX, maxY, maxZ}, {minX, maxY, minZ}, {minX, minY, minZ}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{minX, maxY, minZ}, {minX, maxY, maxZ}, {maxX, maxY, maxZ}, {maxX, maxY, minZ}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{minX, minY, maxZ}, {minX, minY, minZ}, {maxX, minY, minZ}, {maxX, minY, maxZ}}},
		{[3]float32{0, 0, 1}, [4][3]float32{{minX, minY, maxZ}, {maxX, minY, maxZ}, {maxX, maxY, maxZ}, {minX, maxY, maxZ}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{maxX, minY, minZ}, {minX, minY, minZ}, {minX, maxY, minZ}, {maxX, maxY, minZ}}},
	}

	var p Primitive
	for _, f := range faces {
		appendQuad(&p, f.corners, f.n)
	}
	return p
}

// gridPrimitive builds the reference grid as thin flat strips, one per line.
func gridPrimitive(size float32, divisions int) Primitive {
	half := size / 2
	w := size * gridLineRatio
	step := size / float32(divisions)
	up := [3]float32{0, 1, 0}

	p := Primitive{Name: "grid"}
	for i := 0; i <= divisions; i++ {
		c := -half + float32(i)*step
		// Line parallel to X at z = c
		appendQuad(&p, [4][3]float32{{-half, 0, c - w}, {-half, 0, c + w}, {half, 0, c + w}, {half, 0, c - w}}, up)
		// Line parallel to Z at x = c
		appendQuad(&p, [4][3]float32{{c - w, 0, -half}, {c - w, 0, half}, {c + w, 0, half}, {c + w, 0, -half}}, up)
	}
	p.Material = scene.Material{Name: "grid", BaseColor: gridColor, Roughness: 1}
	return p
}

// appendQuad adds two counter-clockwise triangles (a,b,c) and (a,c,d).
func appendQuad(p *Primitive, corners [4][3]float32, normal [3]float32) {
	base := uint32(len(p.Positions))
	for _, c := range corners {
		p.Positions = append(p.Positions, c)
		p.Normals = append(p.Normals, normal)
	}
	p.Indices = append(p.Indices, base, base+1, base+2, base, base+2, base+3)
}
