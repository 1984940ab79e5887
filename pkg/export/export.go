// Package export bakes resolved scene placements into material-split
// primitives and writes them as GLB, OBJ (+MTL and images) or STL.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	smath "github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

// Format is an output file format.
type Format string

// Supported formats.
const (
	FormatGLB Format = "glb"
	FormatOBJ Format = "obj"
	FormatSTL Format = "stl"
)

var (
	// ErrNothingToExport is returned when no scene geometry was resolved.
	// No file is written.
	ErrNothingToExport = errors.New("nothing to export")
	// ErrUnsupportedFormat is returned for formats other than glb, obj and stl.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// ParseFormat parses a format name or file extension ("glb", ".OBJ").
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch f {
	case FormatGLB, FormatOBJ, FormatSTL:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Options controls a single export.
type Options struct {
	Format         Format
	IncludeHelpers bool
	UpAxis         smath.UpAxis
	HelperSize     float32  // <= 0 means DefaultHelperSize
	GridDivisions  int      // <= 0 means DefaultGridDivisions
	Optimize       Optimize // empty means OptimizeNone
}

// validate fills defaults and rejects unknown values.
func (o Options) validate() (Options, error) {
	f, err := ParseFormat(string(o.Format))
	if err != nil {
		return o, err
	}
	o.Format = f
	axis, err := smath.ParseUpAxis(string(o.UpAxis))
	if err != nil {
		return o, err
	}
	o.UpAxis = axis
	level, err := ParseOptimize(string(o.Optimize))
	if err != nil {
		return o, err
	}
	o.Optimize = level
	return o, nil
}

// Key returns a stable string describing the options, for fingerprinting.
func (o Options) Key() string {
	return fmt.Sprintf("format=%s up=%s helpers=%t size=%g div=%d optimize=%s",
		o.Format, o.UpAxis, o.IncludeHelpers, o.HelperSize, o.GridDivisions, o.Optimize)
}

// Baked is a resolved and split scene that has not been written yet.
type Baked struct {
	Placements []scene.Placement
	Primitives []Primitive // helpers first, when included
	Stats      Stats
	Warnings   error
}

// Result describes a completed export.
type Result struct {
	Stats    Stats
	Files    []string // every file written, primary output last
	Warnings error    // non-fatal problems, combined with multierr
}

// Exporter turns registry entities into output files.
type Exporter struct {
	resolver *scene.Resolver
	log      *zap.Logger
}

// NewExporter creates an exporter reading from reg. A nil logger disables logging.
func NewExporter(reg *scene.Registry, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		resolver: scene.NewResolver(reg),
		log:      log,
	}
}

// Build resolves rootIDs and splits every placement into primitives.
// Placements whose mesh fails Validate are dropped with a warning.
// The registry is not read again after Build returns.
func (e *Exporter) Build(rootIDs []string, opts Options) (*Baked, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}

	res := e.resolver.Resolve(rootIDs)
	b := &Baked{Warnings: res.Warnings}

	if opts.IncludeHelpers {
		b.Primitives = append(b.Primitives, Helpers(opts.HelperSize, opts.GridDivisions)...)
	}

	correction := opts.UpAxis.Correction()
	for _, p := range res.Placements {
		if err := p.Mesh.Validate(); err != nil {
			b.Warnings = multierr.Append(b.Warnings,
				fmt.Errorf("root %q: mesh %q: %w", p.RootID, p.MeshID, err))
			continue
		}
		b.Placements = append(b.Placements, p)
		for _, prim := range Split(p, correction) {
			if optimize(&prim, opts.Optimize) {
				b.Primitives = append(b.Primitives, prim)
			}
		}
	}
	b.Stats = ComputeStats(b.Primitives)

	e.log.Debug("scene built",
		zap.Int("roots", len(rootIDs)),
		zap.Int("placements", len(res.Placements)),
		zap.Int("primitives", len(b.Primitives)),
	)
	return b, nil
}

// Export bakes rootIDs and writes them to outputPath in opts.Format.
//
// Missing ids, cycles, invalid meshes and textures that cannot be embedded are reported in
// Result.Warnings. If nothing resolves to geometry, ErrNothingToExport is
// returned and no file is written. Write failures are wrapped in ErrWrite and
// leave no partial output.
func (e *Exporter) Export(rootIDs []string, outputPath string, opts Options) (*Result, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}

	b, err := e.Build(rootIDs, opts)
	if err != nil {
		return nil, err
	}
	e.logWarnings(b.Warnings)

	if b.Stats.Primitives == 0 {
		e.log.Info("nothing to export", zap.Strings("roots", rootIDs))
		return &Result{Warnings: b.Warnings}, ErrNothingToExport
	}

	warnings := b.Warnings
	if opts.Format != FormatSTL {
		texWarnings := embedTextures(b.Primitives)
		e.logWarnings(texWarnings)
		warnings = multierr.Append(warnings, texWarnings)
	}

	files, err := writeFiles(b.Primitives, outputPath, opts.Format)
	if err != nil {
		e.log.Error("export failed", zap.String("path", outputPath), zap.Error(err))
		return nil, err
	}

	e.log.Info("scene exported",
		zap.String("path", outputPath),
		zap.String("format", string(opts.Format)),
		zap.Int("vertices", b.Stats.Vertices),
		zap.Int("triangles", b.Stats.Triangles),
		zap.Int("materials", b.Stats.Materials),
	)
	return &Result{Stats: b.Stats, Files: files, Warnings: warnings}, nil
}

func (e *Exporter) logWarnings(err error) {
	for _, w := range multierr.Errors(err) {
		e.log.Warn("export warning", zap.Error(w))
	}
}

// embedTextures converts each distinct texture once and attaches the result to
// every primitive using it. Failures leave the primitive untextured.
func embedTextures(prims []Primitive) error {
	var warnings error
	results := make(map[string]TextureResult)

	for i := range prims {
		p := &prims[i]
		if p.Texture == nil {
			continue
		}
		if p.UVs == nil {
			warnings = multierr.Append(warnings,
				fmt.Errorf("%s: %w: mesh has no UVs", p.Name, ErrUnsupportedTexture))
			continue
		}
		res, seen := results[p.TextureKey]
		if !seen {
			res = EmbedTexture(*p.Texture)
			results[p.TextureKey] = res
			if !res.OK {
				warnings = multierr.Append(warnings, fmt.Errorf("%s: %w", p.TextureKey, res.Err))
			}
		}
		if res.OK {
			img := res.Image
			p.Image = &img
		}
	}
	return warnings
}

// writeFiles stages every output file and commits them together.
func writeFiles(prims []Primitive, path string, format Format) ([]string, error) {
	var files fileSet
	defer files.cleanup()

	switch format {
	case FormatGLB:
		f, err := files.create(path)
		if err != nil {
			return nil, err
		}
		if err := writeGLB(f, prims); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
		}

	case FormatSTL:
		f, err := files.create(path)
		if err != nil {
			return nil, err
		}
		if err := writeSTL(f, prims); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
		}

	case FormatOBJ:
		if err := stageOBJ(&files, prims, path); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := files.commit(); err != nil {
		return nil, err
	}
	return files.paths, nil
}

// stageOBJ stages images, then the material library, then the OBJ itself.
// Companion files reuse the OBJ's base name: scene.obj, scene.mtl, scene_0.png.
func stageOBJ(files *fileSet, prims []Primitive, path string) error {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	imageFiles := make(map[string]string)
	for i := range prims {
		p := &prims[i]
		if p.Image == nil {
			continue
		}
		if _, ok := imageFiles[p.TextureKey]; ok {
			continue
		}
		name := fmt.Sprintf("%s_%d.%s", base, len(imageFiles), p.Image.Ext)
		f, err := files.create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := f.Write(p.Image.Data); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrWrite, name, err)
		}
		imageFiles[p.TextureKey] = name
	}

	matNames := objMaterialNames(prims)

	mtlName := base + ".mtl"
	mtl, err := files.create(filepath.Join(dir, mtlName))
	if err != nil {
		return err
	}
	if err := writeMTL(mtl, prims, matNames, imageFiles); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, mtlName, err)
	}

	obj, err := files.create(path)
	if err != nil {
		return err
	}
	if err := writeOBJ(obj, prims, mtlName, matNames); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}
