package scene

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"maps"
	"math"
	"slices"
)

// Fingerprint returns a content hash over geometry, materials and textures.
// Callers compare fingerprints to skip exports whose inputs did not change.
// Metadata is not included.
func (m *Mesh) Fingerprint() string {
	h := sha256.New()
	writeFloats(h, len(m.Vertices), func(i int) []float32 { return m.Vertices[i][:] })
	writeFloats(h, len(m.Normals), func(i int) []float32 { return m.Normals[i][:] })
	writeFloats(h, len(m.UVs), func(i int) []float32 { return m.UVs[i][:] })
	writeUint(h, uint64(len(m.Triangles)))
	for _, tri := range m.Triangles {
		for _, idx := range tri {
			writeUint(h, uint64(idx))
		}
	}
	writeUint(h, uint64(len(m.FaceMaterials)))
	for _, idx := range m.FaceMaterials {
		writeUint(h, uint64(idx))
	}

	writeUint(h, uint64(len(m.Materials)))
	for _, mat := range m.Materials {
		writeString(h, mat.Name)
		writeFloats(h, 1, func(int) []float32 {
			return []float32{mat.BaseColor[0], mat.BaseColor[1], mat.BaseColor[2], mat.BaseColor[3], mat.Metallic, mat.Roughness}
		})
	}

	for _, slot := range slices.Sorted(maps.Keys(m.Textures)) {
		writeString(h, slot)
		writeTexture(h, m.Textures[slot])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeTexture hashes encoded bytes as is and decoded images pixel by pixel.
func writeTexture(h hash.Hash, tex Texture) {
	writeString(h, string(tex.Data))
	if tex.Image == nil {
		return
	}
	b := tex.Image.Bounds()
	writeUint(h, uint64(b.Dx()))
	writeUint(h, uint64(b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := tex.Image.At(x, y).RGBA()
			writeUint(h, uint64(r)<<48|uint64(g)<<32|uint64(bl)<<16|uint64(a))
		}
	}
}

// Fingerprint returns a content hash over the target id and transform.
func (n *Node) Fingerprint() string {
	h := sha256.New()
	writeString(h, n.TargetID)
	writeFloats(h, 1, func(int) []float32 { return n.Transform[:] })
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes every entity reachable from rootIDs, in order, plus any
// extra strings (export options). Missing ids and cycles contribute a marker so
// that a later registration changes the result.
func (r *Registry) Fingerprint(rootIDs []string, extra ...string) string {
	h := sha256.New()
	for _, root := range rootIDs {
		writeString(h, root)
		visited := make(map[string]struct{})
		id := root
		for {
			if _, seen := visited[id]; seen {
				writeString(h, "cycle")
				break
			}
			visited[id] = struct{}{}

			ent, ok := r.Lookup(id)
			if !ok {
				writeString(h, "missing:"+id)
				break
			}
			if ent.Kind == KindMesh {
				writeString(h, ent.Mesh.Fingerprint())
				break
			}
			writeString(h, ent.Node.Fingerprint())
			id = ent.Node.TargetID
		}
	}
	for _, s := range extra {
		writeString(h, s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeFloats(h hash.Hash, n int, at func(i int) []float32) {
	var buf [4]byte
	for i := 0; i < n; i++ {
		for _, f := range at(i) {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
			h.Write(buf[:])
		}
	}
}
