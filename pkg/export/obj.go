package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// objMaterialNames returns a unique, whitespace-free material name per primitive.
func objMaterialNames(prims []Primitive) []string {
	names := make([]string, len(prims))
	used := make(map[string]int)
	for i := range prims {
		base := prims[i].Material.Name
		if base == "" {
			base = fmt.Sprintf("material_%d", prims[i].MaterialIndex)
		}
		base = strings.Join(strings.Fields(base), "_")
		name := base
		if n := used[base]; n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[base]++
		names[i] = name
	}
	return names
}

// writeOBJ writes geometry, UVs and normals as Wavefront OBJ referencing mtlName.
// UV v is flipped: OBJ's texture origin is bottom-left.
func writeOBJ(out io.Writer, prims []Primitive, mtlName string, matNames []string) error {
	bw := bufio.NewWriter(out)
	w := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	w("# scenebake")
	w("mtllib %s", mtlName)

	iV, iT, iN := uint32(1), uint32(1), uint32(1)
	for pi := range prims {
		p := &prims[pi]
		w("o %s", strings.Join(strings.Fields(p.Name), "_"))

		for _, v := range p.Positions {
			w("v %g %g %g", v[0], v[1], v[2])
		}
		for _, uv := range p.UVs {
			w("vt %g %g", uv[0], 1-uv[1])
		}
		for _, n := range p.Normals {
			w("vn %g %g %g", n[0], n[1], n[2])
		}

		w("usemtl %s", matNames[pi])

		haveUV := p.UVs != nil
		haveNorm := p.Normals != nil
		for i := 0; i+2 < len(p.Indices); i += 3 {
			idx := p.Indices[i : i+3]
			switch {
			case haveUV && haveNorm:
				w("f %d/%d/%d %d/%d/%d %d/%d/%d",
					iV+idx[0], iT+idx[0], iN+idx[0],
					iV+idx[1], iT+idx[1], iN+idx[1],
					iV+idx[2], iT+idx[2], iN+idx[2])
			case haveNorm:
				w("f %d//%d %d//%d %d//%d",
					iV+idx[0], iN+idx[0],
					iV+idx[1], iN+idx[1],
					iV+idx[2], iN+idx[2])
			case haveUV:
				w("f %d/%d %d/%d %d/%d",
					iV+idx[0], iT+idx[0],
					iV+idx[1], iT+idx[1],
					iV+idx[2], iT+idx[2])
			default:
				w("f %d %d %d", iV+idx[0], iV+idx[1], iV+idx[2])
			}
		}

		iV += uint32(len(p.Positions))
		iT += uint32(len(p.UVs))
		iN += uint32(len(p.Normals))
	}

	return bw.Flush()
}

// writeMTL writes one material per primitive. imageFiles maps a TextureKey to
// the sibling image file name.
func writeMTL(out io.Writer, prims []Primitive, matNames []string, imageFiles map[string]string) error {
	bw := bufio.NewWriter(out)
	w := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	w("# scenebake")
	for i := range prims {
		p := &prims[i]
		c := p.Material.BaseColor
		w("")
		w("newmtl %s", matNames[i])
		w("Kd %g %g %g", c[0], c[1], c[2])
		w("d %g", c[3])
		w("Pm %g", p.Material.Metallic)
		w("Pr %g", p.Material.Roughness)
		if file, ok := imageFiles[p.TextureKey]; ok && p.Image != nil {
			w("map_Kd %s", file)
		}
	}
	return bw.Flush()
}
