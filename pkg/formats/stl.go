package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/scenebake/pkg/encoding"
	smath "github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

// STL format errors.
var (
	ErrTruncatedSTLData = errors.New("truncated STL data")
	ErrInvalidSTL       = errors.New("invalid STL data")
)

const (
	stlHeaderSize = 80
	stlFacetSize  = 50
)

// STLFacet is a single triangle.
type STLFacet struct {
	Normal    [3]float32
	Vertices  [3][3]float32
	Attribute uint16 // binary only
}

// STL represents a parsed stereolithography file.
type STL struct {
	Name   string // ASCII solid name or trimmed binary header
	ASCII  bool
	Facets []STLFacet
}

// ParseSTL parses binary or ASCII STL from raw bytes. Files starting with
// "solid" are treated as ASCII unless their size matches the binary layout,
// since some exporters write "solid" into binary headers too.
func ParseSTL(data []byte) (*STL, error) {
	if isBinarySTL(data) {
		return parseBinarySTL(data)
	}
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return parseASCIISTL(data)
	}
	return parseBinarySTL(data)
}

func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize+4 {
		return false
	}
	count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return uint64(len(data)) == stlHeaderSize+4+uint64(count)*stlFacetSize
}

func parseBinarySTL(data []byte) (*STL, error) {
	if len(data) < stlHeaderSize+4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedSTLData, len(data))
	}
	count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	body := data[stlHeaderSize+4:]
	if uint64(len(body)) < uint64(count)*stlFacetSize {
		return nil, fmt.Errorf("%w: header declares %d facets, data holds %d",
			ErrTruncatedSTLData, count, len(body)/stlFacetSize)
	}

	s := &STL{
		Name:   encoding.FixedStringToUTF8(data[:stlHeaderSize]),
		Facets: make([]STLFacet, count),
	}
	for i := range s.Facets {
		b := body[i*stlFacetSize : (i+1)*stlFacetSize]
		f := &s.Facets[i]
		f.Normal = readVec3(b[0:12])
		f.Vertices[0] = readVec3(b[12:24])
		f.Vertices[1] = readVec3(b[24:36])
		f.Vertices[2] = readVec3(b[36:48])
		f.Attribute = binary.LittleEndian.Uint16(b[48:50])
	}
	return s, nil
}

func readVec3(b []byte) [3]float32 {
	return [3]float32{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
	}
}

// parseASCIISTL reads "facet normal / outer loop / vertex x3 / endloop /
// endfacet" blocks. Keywords are matched case-insensitively.
func parseASCIISTL(data []byte) (*STL, error) {
	s := &STL{ASCII: true}
	sc := bufio.NewScanner(bytes.NewReader(data))

	var (
		cur     STLFacet
		inFacet bool
		nVerts  int
		line    int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "solid":
			s.Name = encoding.ToUTF8([]byte(strings.Join(fields[1:], " ")))
		case "facet":
			if inFacet {
				return nil, fmt.Errorf("%w: line %d: nested facet", ErrInvalidSTL, line)
			}
			cur, inFacet, nVerts = STLFacet{}, true, 0
			if len(fields) >= 5 && strings.EqualFold(fields[1], "normal") {
				n, err := parseFloats(fields[2:5])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidSTL, line, err)
				}
				cur.Normal = n
			}
		case "vertex":
			if !inFacet || nVerts >= 3 || len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: unexpected vertex", ErrInvalidSTL, line)
			}
			v, err := parseFloats(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidSTL, line, err)
			}
			cur.Vertices[nVerts] = v
			nVerts++
		case "endfacet":
			if !inFacet || nVerts != 3 {
				return nil, fmt.Errorf("%w: line %d: facet with %d vertices", ErrInvalidSTL, line, nVerts)
			}
			s.Facets = append(s.Facets, cur)
			inFacet = false
		case "outer", "endloop", "endsolid":
		default:
			return nil, fmt.Errorf("%w: line %d: unknown keyword %q", ErrInvalidSTL, line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ASCII STL: %w", err)
	}
	if inFacet {
		return nil, fmt.Errorf("%w: unterminated facet", ErrTruncatedSTLData)
	}
	return s, nil
}

func parseFloats(fields []string) ([3]float32, error) {
	var v [3]float32
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(x)
	}
	return v, nil
}

// ParseSTLFile parses an STL file from disk.
func ParseSTLFile(path string) (*STL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading STL file: %w", err)
	}
	return ParseSTL(data)
}

// ReadSTL parses STL from r and converts it to a mesh.
func ReadSTL(r io.Reader) (*scene.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading STL: %w", err)
	}
	s, err := ParseSTL(data)
	if err != nil {
		return nil, err
	}
	return s.Mesh(), nil
}

// Mesh converts the facets into a flat-shaded mesh: three vertices per facet,
// each carrying the facet normal. Facets with a zero stored normal get one
// computed from their winding.
func (s *STL) Mesh() *scene.Mesh {
	m := &scene.Mesh{
		Vertices:  make([][3]float32, 0, len(s.Facets)*3),
		Normals:   make([][3]float32, 0, len(s.Facets)*3),
		Triangles: make([][3]uint32, 0, len(s.Facets)),
	}
	if s.Name != "" {
		m.Metadata = map[string]any{"name": s.Name}
	}
	for _, f := range s.Facets {
		n := f.Normal
		if n == ([3]float32{}) {
			a, b, c := smath.V3(f.Vertices[0]), smath.V3(f.Vertices[1]), smath.V3(f.Vertices[2])
			n = b.Sub(a).Cross(c.Sub(a)).Normalize().Array()
		}
		base := uint32(len(m.Vertices))
		for _, v := range f.Vertices {
			m.Vertices = append(m.Vertices, v)
			m.Normals = append(m.Normals, n)
		}
		m.Triangles = append(m.Triangles, [3]uint32{base, base + 1, base + 2})
	}
	return m
}
