package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// writeGLB encodes primitives as a binary glTF. Consecutive primitives with the
// same Group become one glTF mesh with one primitive each, placed by a node in
// the default scene. Transforms are already baked, so nodes carry none.
func writeGLB(w io.Writer, prims []Primitive) error {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "scenebake"

	textures := make(map[string]uint32)
	var mesh *gltf.Mesh

	for i := range prims {
		p := &prims[i]
		if mesh == nil || mesh.Name != p.Group {
			mesh = &gltf.Mesh{Name: p.Group}
			doc.Meshes = append(doc.Meshes, mesh)
			doc.Nodes = append(doc.Nodes, &gltf.Node{
				Name: p.Group,
				Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
			})
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
		}

		attrs := map[string]uint32{
			"POSITION": modeler.WritePosition(doc, p.Positions),
		}
		if p.Normals != nil {
			attrs["NORMAL"] = modeler.WriteNormal(doc, p.Normals)
		}
		if p.UVs != nil {
			attrs["TEXCOORD_0"] = modeler.WriteTextureCoord(doc, p.UVs)
		}
		indices := modeler.WriteIndices(doc, p.Indices)

		mat, err := glbMaterial(doc, p, textures)
		if err != nil {
			return err
		}

		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Indices:    gltf.Index(indices),
			Attributes: attrs,
			Material:   gltf.Index(mat),
		})
	}

	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding glb: %w", err)
	}
	return nil
}

// glbMaterial appends a PBR material for p and returns its index. Images are
// embedded once per TextureKey.
func glbMaterial(doc *gltf.Document, p *Primitive, textures map[string]uint32) (uint32, error) {
	color := p.Material.BaseColor
	metallic := p.Material.Metallic
	roughness := p.Material.Roughness

	pbr := &gltf.PBRMetallicRoughness{
		BaseColorFactor: &color,
		MetallicFactor:  &metallic,
		RoughnessFactor: &roughness,
	}

	if p.Image != nil && p.UVs != nil {
		tex, ok := textures[p.TextureKey]
		if !ok {
			img, err := modeler.WriteImage(doc, p.Name, p.Image.MIMEType, bytes.NewReader(p.Image.Data))
			if err != nil {
				return 0, fmt.Errorf("embedding texture for %s: %w", p.Name, err)
			}
			doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(img)})
			tex = uint32(len(doc.Textures) - 1)
			textures[p.TextureKey] = tex
		}
		pbr.BaseColorTexture = &gltf.TextureInfo{Index: tex}
	}

	mat := &gltf.Material{
		Name:                 p.Material.Name,
		PBRMetallicRoughness: pbr,
	}
	if color[3] < 1 {
		mat.AlphaMode = gltf.AlphaBlend
	}
	doc.Materials = append(doc.Materials, mat)
	return uint32(len(doc.Materials) - 1), nil
}
