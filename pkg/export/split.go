package export

import (
	"fmt"
	"slices"

	smath "github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

// Primitive is a baked, single-material piece of geometry ready for writing.
type Primitive struct {
	Name  string
	Group string // primitives sharing a group are written as one mesh

	Positions [][3]float32
	Normals   [][3]float32 // nil when the source mesh had none
	UVs       [][2]float32 // nil when the source mesh had none
	Indices   []uint32     // three per triangle, into Positions

	MaterialIndex int
	Material      scene.Material

	// Texture is the base color texture resolved by slot key, nil if absent.
	// TextureKey identifies it across primitives so it is embedded once.
	Texture    *scene.Texture
	TextureKey string
	// Image is the embedded form of Texture, filled in before writing.
	Image *EncodedImage

	// SourceTriangles lists the triangle indices of the source mesh this
	// primitive took, in source order.
	SourceTriangles []int

	Helper bool
}

// TriangleCount returns the number of triangles in the primitive.
func (p *Primitive) TriangleCount() int {
	return len(p.Indices) / 3
}

// Split bakes a placement with correction * world and partitions its triangles
// by material index. One primitive is returned per distinct index, in ascending
// index order; together they hold every source triangle exactly once.
// Meshes without triangles or failing Validate yield nothing.
func Split(p scene.Placement, correction smath.Mat4) []Primitive {
	mesh := p.Mesh
	if mesh == nil || len(mesh.Triangles) == 0 || mesh.Validate() != nil {
		return nil
	}

	world := smath.Compose(correction, p.World)
	positions := smath.TransformPoints(mesh.Vertices, world)
	normals := smath.TransformNormals(mesh.Normals, world)

	groups := make(map[int][]int)
	for i := range mesh.Triangles {
		idx := mesh.MaterialIndex(i)
		groups[idx] = append(groups[idx], i)
	}
	order := make([]int, 0, len(groups))
	for idx := range groups {
		order = append(order, idx)
	}
	slices.Sort(order)

	group := p.RootID
	if group == "" {
		group = p.MeshID
	}

	prims := make([]Primitive, 0, len(order))
	for _, idx := range order {
		prim := buildPrimitive(mesh, groups[idx], positions, normals)
		prim.Name = fmt.Sprintf("%s_mat%d", group, idx)
		prim.Group = group
		prim.MaterialIndex = idx
		prim.Material = mesh.Material(idx)
		if tex, ok := mesh.BaseColorTexture(idx); ok {
			prim.Texture = &tex
			prim.TextureKey = p.MeshID + "#" + scene.TextureSlotKey(scene.BaseColorTextureSlot, idx)
		}
		prims = append(prims, prim)
	}
	return prims
}

// buildPrimitive compacts the vertices referenced by tris into a new buffer,
// numbered in first-use order.
func buildPrimitive(mesh *scene.Mesh, tris []int, positions, normals [][3]float32) Primitive {
	remap := make(map[uint32]uint32, len(tris)*3)
	prim := Primitive{
		Indices:         make([]uint32, 0, len(tris)*3),
		SourceTriangles: tris,
	}

	for _, ti := range tris {
		for _, v := range mesh.Triangles[ti] {
			nv, ok := remap[v]
			if !ok {
				nv = uint32(len(prim.Positions))
				remap[v] = nv
				prim.Positions = append(prim.Positions, positions[v])
				if normals != nil {
					prim.Normals = append(prim.Normals, normals[v])
				}
				if mesh.UVs != nil {
					prim.UVs = append(prim.UVs, mesh.UVs[v])
				}
			}
			prim.Indices = append(prim.Indices, nv)
		}
	}
	return prim
}
