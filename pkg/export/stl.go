package export

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/Faultbox/scenebake/pkg/encoding"
	smath "github.com/Faultbox/scenebake/pkg/math"
)

const stlHeader = "scenebake binary STL"

// writeSTL writes binary STL: an 80 byte header, a little-endian uint32
// triangle count, then 50 bytes per triangle (facet normal, three vertices,
// uint16 attribute). Materials, textures and UVs have no place in STL and
// are dropped.
func writeSTL(out io.Writer, prims []Primitive) error {
	bw := bufio.NewWriter(out)

	if _, err := bw.Write(encoding.UTF8ToFixedString(stlHeader, 80)); err != nil {
		return err
	}

	var count uint32
	for i := range prims {
		count += uint32(prims[i].TriangleCount())
	}
	var buf [50]byte
	binary.LittleEndian.PutUint32(buf[:4], count)
	if _, err := bw.Write(buf[:4]); err != nil {
		return err
	}

	for i := range prims {
		p := &prims[i]
		for t := 0; t+2 < len(p.Indices); t += 3 {
			a := p.Positions[p.Indices[t]]
			b := p.Positions[p.Indices[t+1]]
			c := p.Positions[p.Indices[t+2]]
			n := facetNormal(a, b, c)

			putVec3(buf[0:12], n)
			putVec3(buf[12:24], a)
			putVec3(buf[24:36], b)
			putVec3(buf[36:48], c)
			buf[48], buf[49] = 0, 0
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func facetNormal(a, b, c [3]float32) [3]float32 {
	ab := smath.V3(b).Sub(smath.V3(a))
	ac := smath.V3(c).Sub(smath.V3(a))
	return ab.Cross(ac).Normalize().Array()
}

func putVec3(dst []byte, v [3]float32) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(v[2]))
}
