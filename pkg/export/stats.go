package export

import (
	smath "github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Size returns the box extents along each axis.
func (b Bounds) Size() [3]float32 {
	return [3]float32{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Stats summarizes exported scene content. Helper geometry is not counted.
type Stats struct {
	Vertices   int
	Triangles  int
	Materials  int // distinct materials
	Primitives int
	Bounds     Bounds
}

// ComputeStats summarizes the non-helper primitives.
func ComputeStats(prims []Primitive) Stats {
	var s Stats
	mats := make(map[scene.Material]struct{})
	first := true

	for i := range prims {
		p := &prims[i]
		if p.Helper {
			continue
		}
		s.Primitives++
		s.Vertices += len(p.Positions)
		s.Triangles += p.TriangleCount()
		mats[p.Material] = struct{}{}

		for _, v := range p.Positions {
			if first {
				s.Bounds = Bounds{Min: v, Max: v}
				first = false
				continue
			}
			s.Bounds.Min = smath.V3(s.Bounds.Min).Min(smath.V3(v)).Array()
			s.Bounds.Max = smath.V3(s.Bounds.Max).Max(smath.V3(v)).Array()
		}
	}
	s.Materials = len(mats)
	return s
}
