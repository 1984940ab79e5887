// Package manifest loads scene descriptions from YAML or TOML files and
// registers their meshes and nodes.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/scenebake/internal/assets"
	"github.com/Faultbox/scenebake/internal/config"
	"github.com/Faultbox/scenebake/pkg/export"
	smath "github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

var (
	// ErrUnknownFormat is returned for manifest files with an unsupported
	// extension. Mesh sources report assets.ErrUnknownFormat.
	ErrUnknownFormat = errors.New("unknown file format")
	// ErrInvalid is returned when a manifest is structurally wrong.
	ErrInvalid = errors.New("invalid manifest")
)

// Manifest describes a scene: meshes, nodes placing them, the roots to export
// and optional export settings.
type Manifest struct {
	Meshes []MeshSpec  `yaml:"meshes" toml:"meshes"`
	Nodes  []NodeSpec  `yaml:"nodes" toml:"nodes"`
	Roots  []string    `yaml:"roots" toml:"roots"`
	Export *ExportSpec `yaml:"export" toml:"export"`

	path string
}

// MeshSpec is a mesh loaded from Source, given inline, or derived from the
// registered mesh Base with its materials and textures replaced. A Base that
// names a node uses the mesh at the end of its chain; the node's transform
// is not applied.
type MeshSpec struct {
	ID     string `yaml:"id" toml:"id"`
	Source string `yaml:"source" toml:"source"` // relative to the manifest
	Base   string `yaml:"base" toml:"base"`

	Vertices      [][3]float32 `yaml:"vertices" toml:"vertices"`
	Normals       [][3]float32 `yaml:"normals" toml:"normals"`
	UVs           [][2]float32 `yaml:"uvs" toml:"uvs"`
	Triangles     [][3]uint32  `yaml:"triangles" toml:"triangles"`
	FaceMaterials []int        `yaml:"face_materials" toml:"face_materials"`

	Materials []MaterialSpec    `yaml:"materials" toml:"materials"`
	Textures  map[string]string `yaml:"textures" toml:"textures"` // slot key -> image file
}

// MaterialSpec is a material whose omitted fields take the default material's values.
type MaterialSpec struct {
	Name      string      `yaml:"name" toml:"name"`
	BaseColor *[4]float32 `yaml:"base_color" toml:"base_color"`
	Metallic  *float32    `yaml:"metallic" toml:"metallic"`
	Roughness *float32    `yaml:"roughness" toml:"roughness"`
}

// NodeSpec places Target with a TRS transform. Rotation is Euler XYZ in degrees.
type NodeSpec struct {
	ID           string      `yaml:"id" toml:"id"`
	Target       string      `yaml:"target" toml:"target"`
	Position     [3]float32  `yaml:"position" toml:"position"`
	Rotation     [3]float32  `yaml:"rotation" toml:"rotation"`
	Scale        *[3]float32 `yaml:"scale" toml:"scale"`
	UniformScale float32     `yaml:"uniform_scale" toml:"uniform_scale"`
}

// ExportSpec overrides the configured export settings for this scene.
type ExportSpec struct {
	Output   string `yaml:"output" toml:"output"` // relative to the manifest
	Format   string `yaml:"format" toml:"format"`
	UpAxis   string `yaml:"up_axis" toml:"up_axis"`
	Helpers  *bool  `yaml:"helpers" toml:"helpers"`
	Optimize string `yaml:"optimize" toml:"optimize"`
}

// decoder decodes a manifest document.
type decoder interface {
	Decode(v any) error
}

// decoders maps manifest file extensions to strict decoders.
var decoders = map[string]func(r io.Reader) decoder{
	".yaml": newYAMLDecoder,
	".yml":  newYAMLDecoder,
	".toml": newTOMLDecoder,
}

func newYAMLDecoder(r io.Reader) decoder {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	return d
}

func newTOMLDecoder(r io.Reader) decoder {
	return toml.NewDecoder(r).DisallowUnknownFields()
}

// Load reads and validates the manifest at path. The format follows the
// extension: .yaml, .yml or .toml.
func Load(path string) (*Manifest, error) {
	newDecoder, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	defer f.Close()

	m := &Manifest{path: abs}
	if err := newDecoder(f).Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Path returns the absolute path the manifest was loaded from.
func (m *Manifest) Path() string {
	return m.path
}

// Dir returns the directory relative paths are resolved against.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.path)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir(), p)
}

func (m *Manifest) validate() error {
	ids := make(map[string]bool)
	claim := func(kind string, i int, id string) error {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil
		}
		if ids[id] {
			return fmt.Errorf("%w: %s %d: duplicate id %q", ErrInvalid, kind, i, id)
		}
		ids[id] = true
		return nil
	}

	for i, ms := range m.Meshes {
		if err := claim("mesh", i, ms.ID); err != nil {
			return err
		}
		inline := len(ms.Vertices) > 0 || len(ms.Triangles) > 0
		base := strings.TrimSpace(ms.Base)
		switch {
		case base != "" && (ms.Source != "" || inline || ms.FaceMaterials != nil):
			return fmt.Errorf("%w: mesh %d: base only takes materials and textures", ErrInvalid, i)
		case base != "" && base == strings.TrimSpace(ms.ID):
			return fmt.Errorf("%w: mesh %d: derived from itself", ErrInvalid, i)
		case base != "":
			// derived; geometry comes from the base
		case ms.Source != "" && inline:
			return fmt.Errorf("%w: mesh %d: source and inline geometry are exclusive", ErrInvalid, i)
		case ms.Source == "" && !inline:
			return fmt.Errorf("%w: mesh %d: needs a source or inline geometry", ErrInvalid, i)
		}
	}
	for i, ns := range m.Nodes {
		if err := claim("node", i, ns.ID); err != nil {
			return err
		}
		if strings.TrimSpace(ns.Target) == "" {
			return fmt.Errorf("%w: node %d: missing target", ErrInvalid, i)
		}
	}
	return nil
}

// Files lists every file the scene depends on: the manifest, mesh sources
// and texture images, as absolute paths.
func (m *Manifest) Files() []string {
	files := []string{m.path}
	for _, ms := range m.Meshes {
		if ms.Source != "" {
			files = append(files, m.resolve(ms.Source))
		}
		for _, tex := range ms.Textures {
			files = append(files, m.resolve(tex))
		}
	}
	return files
}

// Source supplies mesh sources and texture files. *assets.Manager implements it.
type Source interface {
	ReadFile(path string) ([]byte, error)
	LoadMesh(path string) (*scene.Mesh, error)
}

// Apply registers the manifest's meshes, then its nodes, then the meshes
// derived from a base, and returns the root ids to export. Blank ids are
// generated by the registry. When the manifest lists no roots, every entity
// that no node targets and no mesh derives from is a root, in manifest order
// (meshes first).
func (m *Manifest) Apply(reg *scene.Registry) ([]string, error) {
	return m.ApplyFrom(reg, assets.NewManager())
}

// ApplyFrom is Apply reading files through src, which may cache them
// between calls.
func (m *Manifest) ApplyFrom(reg *scene.Registry, src Source) ([]string, error) {
	meshIDs := make([]string, len(m.Meshes))
	for i, ms := range m.Meshes {
		if strings.TrimSpace(ms.Base) != "" {
			continue
		}
		mesh, err := m.buildMesh(ms, src)
		if err != nil {
			return nil, fmt.Errorf("mesh %d (%s): %w", i, ms.ID, err)
		}
		meshIDs[i] = reg.RegisterMesh(mesh, ms.ID)
	}

	used := make(map[string]bool)
	var nodeIDs []string
	for _, ns := range m.Nodes {
		scale := smath.Vec3{X: 1, Y: 1, Z: 1}
		if ns.Scale != nil {
			scale = smath.V3(*ns.Scale)
		}
		if ns.UniformScale != 0 {
			scale = scale.Scale(ns.UniformScale)
		}
		node := scene.NewNode(strings.TrimSpace(ns.Target),
			smath.V3(ns.Position), smath.V3(ns.Rotation), scale)
		nodeIDs = append(nodeIDs, reg.RegisterNode(node, ns.ID))
		used[node.TargetID] = true
	}

	for i, ms := range m.Meshes {
		base := strings.TrimSpace(ms.Base)
		if base == "" {
			continue
		}
		mesh, err := m.deriveMesh(ms, reg, src)
		if err != nil {
			return nil, fmt.Errorf("mesh %d (%s): %w", i, ms.ID, err)
		}
		meshIDs[i] = reg.RegisterMesh(mesh, ms.ID)
		used[base] = true
	}

	if len(m.Roots) > 0 {
		return m.Roots, nil
	}
	var roots []string
	for _, id := range append(meshIDs, nodeIDs...) {
		if !used[id] {
			roots = append(roots, id)
		}
	}
	return roots, nil
}

// deriveMesh copies the mesh ms.Base resolves to, replacing its materials
// when ms lists any and setting each texture slot ms names.
func (m *Manifest) deriveMesh(ms MeshSpec, reg *scene.Registry, src Source) (*scene.Mesh, error) {
	base := strings.TrimSpace(ms.Base)
	res := scene.NewResolver(reg).Resolve([]string{base})
	if res.Warnings != nil {
		return nil, fmt.Errorf("base %q: %w", base, res.Warnings)
	}
	mesh := res.Placements[0].Mesh

	if len(ms.Materials) > 0 {
		mats := make([]scene.Material, 0, len(ms.Materials))
		for _, spec := range ms.Materials {
			mats = append(mats, spec.material())
		}
		mesh = mesh.WithMaterials(mats...)
	}

	textures, err := m.loadTextures(ms, src)
	if err != nil {
		return nil, err
	}
	for _, slot := range slices.Sorted(maps.Keys(textures)) {
		mesh = mesh.WithTexture(slot, textures[slot])
	}
	return mesh, nil
}

func (m *Manifest) loadTextures(ms MeshSpec, src Source) (map[string]scene.Texture, error) {
	if len(ms.Textures) == 0 {
		return nil, nil
	}
	textures := make(map[string]scene.Texture, len(ms.Textures))
	for slot, file := range ms.Textures {
		data, err := src.ReadFile(m.resolve(file))
		if err != nil {
			return nil, fmt.Errorf("texture %s: %w", slot, err)
		}
		textures[slot] = scene.Texture{Data: data}
	}
	return textures, nil
}

func (m *Manifest) buildMesh(ms MeshSpec, src Source) (*scene.Mesh, error) {
	var mesh *scene.Mesh
	if ms.Source != "" {
		loaded, err := src.LoadMesh(m.resolve(ms.Source))
		if err != nil {
			return nil, err
		}
		// loaded may be shared through a cache; copy before adding materials.
		mesh = &scene.Mesh{
			Vertices:  loaded.Vertices,
			Normals:   loaded.Normals,
			UVs:       loaded.UVs,
			Triangles: loaded.Triangles,
			Metadata:  loaded.Metadata,
		}
	} else {
		mesh = &scene.Mesh{
			Vertices:  ms.Vertices,
			Normals:   ms.Normals,
			UVs:       ms.UVs,
			Triangles: ms.Triangles,
		}
	}
	if ms.FaceMaterials != nil {
		mesh.FaceMaterials = ms.FaceMaterials
	}

	for _, spec := range ms.Materials {
		mesh.Materials = append(mesh.Materials, spec.material())
	}

	textures, err := m.loadTextures(ms, src)
	if err != nil {
		return nil, err
	}
	mesh.Textures = textures

	if err := mesh.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return mesh, nil
}

func (s MaterialSpec) material() scene.Material {
	mat := scene.DefaultMaterial()
	mat.Name = s.Name
	if s.BaseColor != nil {
		mat.BaseColor = *s.BaseColor
	}
	if s.Metallic != nil {
		mat.Metallic = *s.Metallic
	}
	if s.Roughness != nil {
		mat.Roughness = *s.Roughness
	}
	return mat
}

// Configure applies the manifest's export section on top of cfg and returns
// the output path. A format left unset follows the output's extension. Without
// an explicit output the file is named after the manifest and placed in
// cfg.OutputDir.
func (m *Manifest) Configure(cfg *config.ExportConfig) string {
	var output string
	if e := m.Export; e != nil {
		output = m.resolve(e.Output)
		switch {
		case e.Format != "":
			cfg.Format = e.Format
		case output != "":
			if f, err := export.ParseFormat(filepath.Ext(output)); err == nil {
				cfg.Format = string(f)
			}
		}
		if e.UpAxis != "" {
			cfg.UpAxis = e.UpAxis
		}
		if e.Helpers != nil {
			cfg.Helpers = *e.Helpers
		}
		if e.Optimize != "" {
			cfg.Optimize = e.Optimize
		}
	}
	if output == "" {
		base := strings.TrimSuffix(filepath.Base(m.path), filepath.Ext(m.path))
		output = filepath.Join(cfg.OutputDir, base+"."+strings.ToLower(cfg.Format))
	}
	return output
}
