package export

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	smath "github.com/Faultbox/scenebake/pkg/math"
)

// Optimize selects the cleanup applied to baked primitives before writing.
type Optimize string

// Optimization levels.
const (
	OptimizeNone Optimize = "none"
	// OptimizeWeld merges vertices that agree in position, normal and UV.
	OptimizeWeld Optimize = "weld"
	// OptimizeFull welds, drops degenerate and duplicate triangles, removes
	// unreferenced vertices and fills in missing or zero-length normals.
	OptimizeFull Optimize = "full"
)

// ErrUnsupportedOptimize is returned for unknown optimization levels.
var ErrUnsupportedOptimize = errors.New("unsupported optimize level")

// weldPrecision is the grid vertex attributes are snapped to when comparing.
const weldPrecision = 1e-5

// ParseOptimize parses an optimization level. Empty means OptimizeNone and
// "weld_vertices" is accepted for OptimizeWeld.
func ParseOptimize(s string) (Optimize, error) {
	switch o := Optimize(strings.ToLower(strings.TrimSpace(s))); o {
	case "", OptimizeNone:
		return OptimizeNone, nil
	case OptimizeWeld, "weld_vertices":
		return OptimizeWeld, nil
	case OptimizeFull:
		return OptimizeFull, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedOptimize, s)
}

// optimize applies level to p in place and reports whether any triangle is
// left.
func optimize(p *Primitive, level Optimize) bool {
	switch level {
	case OptimizeWeld:
		weld(p)
	case OptimizeFull:
		weld(p)
		dropFaces(p)
		compact(p)
		fixNormals(p)
	}
	return p.TriangleCount() > 0
}

type weldKey struct {
	pos [3]int64
	nrm [3]int64
	uv  [2]int64
}

func snap(v float32) int64 {
	return int64(math.Round(float64(v) / weldPrecision))
}

// weld merges vertices whose attributes snap to the same key. The first
// vertex of each group is kept and indices are rewritten to it.
func weld(p *Primitive) {
	seen := make(map[weldKey]uint32, len(p.Positions))
	remap := make([]uint32, len(p.Positions))

	var positions, normals [][3]float32
	var uvs [][2]float32
	for i, v := range p.Positions {
		var k weldKey
		for c := range 3 {
			k.pos[c] = snap(v[c])
		}
		if p.Normals != nil {
			for c := range 3 {
				k.nrm[c] = snap(p.Normals[i][c])
			}
		}
		if p.UVs != nil {
			k.uv = [2]int64{snap(p.UVs[i][0]), snap(p.UVs[i][1])}
		}

		j, ok := seen[k]
		if !ok {
			j = uint32(len(positions))
			seen[k] = j
			positions = append(positions, v)
			if p.Normals != nil {
				normals = append(normals, p.Normals[i])
			}
			if p.UVs != nil {
				uvs = append(uvs, p.UVs[i])
			}
		}
		remap[i] = j
	}

	indices := make([]uint32, len(p.Indices))
	for i, idx := range p.Indices {
		indices[i] = remap[idx]
	}
	p.Positions, p.Normals, p.UVs, p.Indices = positions, normals, uvs, indices
}

// dropFaces removes triangles that repeat a vertex and triangles that use the
// same three vertices as an earlier one, whatever their winding.
// SourceTriangles is kept in step.
func dropFaces(p *Primitive) {
	tracked := len(p.SourceTriangles) == p.TriangleCount()
	seen := make(map[[3]uint32]struct{}, p.TriangleCount())

	indices := make([]uint32, 0, len(p.Indices))
	var source []int
	for t := 0; t+2 < len(p.Indices); t += 3 {
		tri := [3]uint32{p.Indices[t], p.Indices[t+1], p.Indices[t+2]}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			continue
		}
		key := tri
		slices.Sort(key[:])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		indices = append(indices, tri[:]...)
		if tracked {
			source = append(source, p.SourceTriangles[t/3])
		}
	}
	p.Indices = indices
	if tracked {
		p.SourceTriangles = source
	}
}

// compact removes vertices no triangle references, renumbering the rest in
// first-use order.
func compact(p *Primitive) {
	remap := make(map[uint32]uint32, len(p.Positions))
	var positions, normals [][3]float32
	var uvs [][2]float32

	indices := make([]uint32, len(p.Indices))
	for i, idx := range p.Indices {
		nv, ok := remap[idx]
		if !ok {
			nv = uint32(len(positions))
			remap[idx] = nv
			positions = append(positions, p.Positions[idx])
			if p.Normals != nil {
				normals = append(normals, p.Normals[idx])
			}
			if p.UVs != nil {
				uvs = append(uvs, p.UVs[idx])
			}
		}
		indices[i] = nv
	}
	p.Positions, p.Normals, p.UVs, p.Indices = positions, normals, uvs, indices
}

// fixNormals fills in normals for a primitive that has none, and replaces
// zero-length ones, with the area-weighted average of the adjacent face normals.
func fixNormals(p *Primitive) {
	accum := make([]smath.Vec3, len(p.Positions))
	for t := 0; t+2 < len(p.Indices); t += 3 {
		a, b, c := p.Indices[t], p.Indices[t+1], p.Indices[t+2]
		pa := smath.V3(p.Positions[a])
		// The cross product's length is twice the triangle area.
		n := smath.V3(p.Positions[b]).Sub(pa).Cross(smath.V3(p.Positions[c]).Sub(pa))
		accum[a] = accum[a].Add(n)
		accum[b] = accum[b].Add(n)
		accum[c] = accum[c].Add(n)
	}

	if p.Normals == nil {
		p.Normals = make([][3]float32, len(p.Positions))
	}
	for i, n := range p.Normals {
		if smath.V3(n).Length() > 0 {
			continue
		}
		p.Normals[i] = accum[i].Normalize().Array()
	}
}
