// Package scene holds the mesh/node data model, the id-keyed entity registry
// and the resolver that flattens node chains into world-space placements.
package scene

import (
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"
)

// BaseColorTextureSlot is the texture slot key for material 0's base color.
// Material N > 0 uses BaseColorTextureSlot + "_N", see TextureSlotKey.
const BaseColorTextureSlot = "base_color_texture"

// Material is a PBR metallic-roughness material.
type Material struct {
	Name      string
	BaseColor [4]float32 // linear RGBA
	Metallic  float32
	Roughness float32
}

// DefaultMaterial is used for triangles whose material index is out of range.
func DefaultMaterial() Material {
	return Material{
		Name:      "default",
		BaseColor: [4]float32{0.8, 0.8, 0.8, 1.0},
		Metallic:  0.0,
		Roughness: 0.5,
	}
}

// ErrInvalidMesh is returned by Validate when a mesh breaks its structural
// invariants.
var ErrInvalidMesh = errors.New("invalid mesh")

// Texture is image data attached to a texture slot. Either Image is set, or Data
// holds an encoded image (PNG, JPEG, BMP, ...) as supplied by the loader.
type Texture struct {
	Image image.Image
	Data  []byte
}

// Empty reports whether the texture carries no image data.
func (t Texture) Empty() bool {
	return t.Image == nil && len(t.Data) == 0
}

// Mesh is an immutable bundle of geometry, materials and textures.
// Meshes are never edited in place once registered; the With* methods return
// modified copies that are registered under a new id.
type Mesh struct {
	Vertices  [][3]float32
	Normals   [][3]float32 // nil or len(Vertices)
	UVs       [][2]float32 // nil or len(Vertices)
	Triangles [][3]uint32

	Materials []Material
	// FaceMaterials maps each triangle to an index into Materials.
	// nil means every triangle uses material 0.
	FaceMaterials []int

	Textures map[string]Texture
	Metadata map[string]any
}

// Validate checks the structural invariants of the mesh.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	if m.Normals != nil && len(m.Normals) != n {
		return fmt.Errorf("%w: %d normals for %d vertices", ErrInvalidMesh, len(m.Normals), n)
	}
	if m.UVs != nil && len(m.UVs) != n {
		return fmt.Errorf("%w: %d uvs for %d vertices", ErrInvalidMesh, len(m.UVs), n)
	}
	if m.FaceMaterials != nil && len(m.FaceMaterials) != len(m.Triangles) {
		return fmt.Errorf("%w: %d face materials for %d triangles", ErrInvalidMesh, len(m.FaceMaterials), len(m.Triangles))
	}
	for i, tri := range m.Triangles {
		for _, idx := range tri {
			if int(idx) >= n {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidMesh, i, idx, n)
			}
		}
	}
	return nil
}

// MaterialIndex returns the material index of triangle i.
func (m *Mesh) MaterialIndex(i int) int {
	if m.FaceMaterials == nil {
		return 0
	}
	return m.FaceMaterials[i]
}

// Material resolves a material index, falling back to DefaultMaterial
// for indices outside Materials.
func (m *Mesh) Material(idx int) Material {
	if idx < 0 || idx >= len(m.Materials) {
		return DefaultMaterial()
	}
	return m.Materials[idx]
}

// TextureSlotKey returns the slot key for a material index: the base key for
// index 0 and base + "_N" otherwise.
func TextureSlotKey(base string, materialIdx int) string {
	if materialIdx == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, materialIdx)
}

// BaseColorTexture returns the base color texture for a material index.
func (m *Mesh) BaseColorTexture(materialIdx int) (Texture, bool) {
	tex, ok := m.Textures[TextureSlotKey(BaseColorTextureSlot, materialIdx)]
	if !ok || tex.Empty() {
		return Texture{}, false
	}
	return tex, true
}

// clone returns a shallow copy with its own material list, texture and
// metadata maps. Geometry slices are shared; they are never written to.
func (m *Mesh) clone() *Mesh {
	c := *m
	c.Materials = slices.Clone(m.Materials)
	c.Textures = maps.Clone(m.Textures)
	c.Metadata = maps.Clone(m.Metadata)
	return &c
}

// WithMaterials returns a copy of m using the given materials.
func (m *Mesh) WithMaterials(mats ...Material) *Mesh {
	c := m.clone()
	c.Materials = slices.Clone(mats)
	return c
}

// WithTexture returns a copy of m with the texture slot replaced.
func (m *Mesh) WithTexture(slot string, tex Texture) *Mesh {
	c := m.clone()
	if c.Textures == nil {
		c.Textures = make(map[string]Texture)
	}
	c.Textures[slot] = tex
	return c
}
